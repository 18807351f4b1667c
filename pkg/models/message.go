package models

type Message struct {
	ID     string `json:"id"`
	Thread string `json:"thread"`
	Author string `json:"author,omitempty"`
	// TS is the creation timestamp (ns)
	TS int64 `json:"ts"`
	// Body is opaque to the engine; clients manage its meaning
	Body string `json:"body,omitempty"`
}
