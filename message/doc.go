// The message package contains the Message type sent by the kroute
// Producer.
//
// You can create a new Message by calling New with a topic and the
// already encoded key and payload:
//
//	msg, err := message.New("my-topic", key, payload)
//
// Two default headers are added to all Messages:
//
// - Message-Id : a unique ID for the message
// - Produced-At : the current time in the UTC timezone.
//
// New can also be passed zero, one or many additional Options. An
// Option is a function that receives a pointer to the Message and can
// modify it directly prior to it being returned by New.
//
//	msg, err := message.New("my-topic", key, payload, message.Header("subject", "potatoes"))
package message
