// Package logging provides leveled logging for the media pipeline service.
//
// Levels are controlled through the LOG_LEVEL environment variable
// (debug, info, warn, error) or DEBUG=true as a shortcut for debug level.
// All output goes through the standard library logger so timestamps and
// destinations remain configurable by the host process.
package logging
