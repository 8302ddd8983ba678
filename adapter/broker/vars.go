package broker

type MessageHandler func(topic string, payload []byte)

type ConnectHandler func()

type DisconnectHandler func(err error)
