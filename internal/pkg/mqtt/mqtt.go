package mqtt

import (
	"errors"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
)

type service struct {
	client paho_mqtt.Client
}

func New(client paho_mqtt.Client) *service {
	return &service{
		client: client,
	}
}

func (s *service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(time.Second * 5)
	if res {
		return nil
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}

func (s *service) Disconnect() {
	s.client.Disconnect(250)
}

// Subscribe registers a handler for a topic at QoS 1. The handler runs on
// the paho delivery goroutine.
func (s *service) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := s.client.Subscribe(topic, 1, func(_ paho_mqtt.Client, msg paho_mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(time.Second * 5) {
		return errors.New("unable to subscribe in time")
	}
	return token.Error()
}

func (s *service) Unsubscribe(topics ...string) error {
	token := s.client.Unsubscribe(topics...)
	if !token.WaitTimeout(time.Second * 5) {
		return errors.New("unable to unsubscribe in time")
	}
	return token.Error()
}

func (s *service) Publish(topic string, qos byte, payload []byte) error {
	token := s.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(time.Second * 10) {
		return errors.New("unable to publish in time")
	}
	return token.Error()
}
