package common

// Observer is notified after every delivery attempt.
type Observer interface {
	Update(event DeliveryEvent) error
	Name() string
}

type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	Notify(event DeliveryEvent)
}
