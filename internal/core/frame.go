package core

// Frame is a raw signaling payload as read from or written to a
// transport connection.
type Frame []byte
