package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound        = errors.New("resource not found") // General not found
	ErrProjectNotFound = errors.New("project not found")
	ErrStoryNotFound   = errors.New("user story not found")
	ErrPostNotFound    = errors.New("blog post not found")
	ErrSessionNotFound = errors.New("flow session not found")

	// User & Authentication Errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user with this username already exists")
	ErrEmailAlreadyExists = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized") // Authentication required or failed
	ErrForbidden          = errors.New("forbidden")    // Authenticated, but lacks permission

	// Token Errors
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenExpired  = errors.New("token has expired")
	ErrTokenNotFound = errors.New("token not found in storage")

	// Step Flow & Generation Errors
	ErrStepIncomplete       = errors.New("current step is not answered")
	ErrGenerationInProgress = errors.New("generation is already in progress for this session")
	ErrNotGenerating        = errors.New("session is not generating")
	ErrGenerationFailed     = errors.New("story generation failed")
	ErrGenerationCancelled  = errors.New("story generation was cancelled")
	ErrProjectRequired      = errors.New("project is required for this operation")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
