// Package common contains shared constants and sentinel errors used across
// daybook components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Collection names shared by the client gateway and the server.
const (
	CollectionNotes  = "note"
	CollectionImages = "image"
)
