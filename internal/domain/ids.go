// Package domain contains entities without logic, just meta-data.
package domain

type (
	// ChannelID names a voice channel. A channel and its room share the id.
	ChannelID string

	// ConnID identifies one physical signaling connection.
	ConnID string

	UserID string
)
