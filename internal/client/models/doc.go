// Package models holds the client-side view of API payloads.
package models
