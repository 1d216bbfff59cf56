// Package storage defines the persistence contracts for the scheduling bot.
// It declares the Store capability set that command handlers and the
// reminder scheduler depend on, leaving the engine choice to implementations.
package storage
