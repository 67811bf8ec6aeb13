package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound          = errors.New("resource not found") // General not found
	ErrCharacterNotFound = errors.New("character not found")
	ErrEncounterNotFound = errors.New("encounter not found")

	// Authentication/Authorization Errors
	ErrUnauthorized = errors.New("unauthorized") // Authentication required or failed
	ErrForbidden    = errors.New("forbidden")    // Authenticated, but lacks permission

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Resource Ledger Errors
	ErrUnknownStat        = errors.New("stat is not defined for this character")
	ErrUnknownCombatStat  = errors.New("combat stat is missing from the cost table")
	ErrStatFloorViolated  = errors.New("stat cannot go below its floor")
	ErrNegativeStatCapHit = errors.New("no more than four base stats may sit at -1")
	ErrInsufficientPoints = errors.New("not enough base points available")
	ErrInsufficientTokens = errors.New("not enough combat tokens available")
	ErrSpentBelowZero     = errors.New("spent counter cannot go negative")

	// Leveling Errors
	ErrDMNotLevelable = errors.New("dm characters cannot be leveled")
	ErrLevelConflict  = errors.New("level changed concurrently, retry") // Optimistic guard tripped

	// Turn-Order Errors
	ErrTurnLogFailed = errors.New("turn advanced but the encounter log could not be written")

	// Duplication Errors
	ErrDuplicationInProgress = errors.New("duplication with this key is already in progress, retry") // Reservation held by another request

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
