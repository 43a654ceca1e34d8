// Package domain contains core concepts of the chat system.
// This file defines the identifiers shared by every layer.
// No runtime, network, or storage logic should be added here.
package domain

// Identity is the user id bound to a connection once authenticated.
type Identity string

// ConnectionID identifies one live transport connection.
// A single Identity may own several of them (tabs, devices).
type ConnectionID string

type ChannelID string

type MessageID string

func (i Identity) String() string { return string(i) }

func (c ConnectionID) String() string { return string(c) }

func (c ChannelID) String() string { return string(c) }

func (m MessageID) String() string { return string(m) }
