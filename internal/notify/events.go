// Package notify turns quote and order events into outbound emails. Delivery
// is fire-and-forget: failures are logged and counted, never returned.
package notify

// Event names a notification trigger.
type Event string

const (
	QuoteRequested Event = "quoteRequested"
	QuoteResponded Event = "quoteResponded"
	QuoteAccepted  Event = "quoteAccepted"
	QuoteRejected  Event = "quoteRejected"
	OrderPlaced    Event = "orderPlaced"
	MessageToUser  Event = "messageToUser"
	MessageToAdmin Event = "messageToAdmin"
)

type audience uint8

const (
	toBuyer audience = 1 << iota
	toAdmin
)

var routing = map[Event]audience{
	QuoteRequested: toBuyer | toAdmin,
	QuoteResponded: toBuyer,
	QuoteAccepted:  toBuyer | toAdmin,
	QuoteRejected:  toBuyer | toAdmin,
	OrderPlaced:    toBuyer | toAdmin,
	MessageToUser:  toBuyer,
	MessageToAdmin: toAdmin,
}

var subjects = map[Event]string{
	QuoteRequested: "Quote request received",
	QuoteResponded: "Your quote is ready",
	QuoteAccepted:  "Quote accepted",
	QuoteRejected:  "Quote rejected",
	OrderPlaced:    "Order confirmation",
	MessageToUser:  "New message on your quote",
	MessageToAdmin: "New buyer message on a quote",
}

// Notification carries what a recipient needs to act on an event.
type Notification struct {
	Event      Event
	Reference  string
	BuyerName  string
	BuyerEmail string
	Summary    string
}

// Message is one addressed email handed to a transport.
type Message struct {
	Event     Event  `json:"event"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Reference string `json:"reference"`
}
