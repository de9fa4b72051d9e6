package util

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/laforge-app/laforge/pkg/errors"
)

type friendlyError interface {
	FriendlyMessage() string
}

// PrintableMessage returns what should be shown to the user for the error.
// Friendly errors print their message verbatim; anything else is prefixed
// so users know to report it.
func PrintableMessage(err error) string {
	for curr := err; curr != nil; {
		if friendly, ok := curr.(friendlyError); ok {
			return friendly.FriendlyMessage()
		}

		ctxErr, ok := curr.(errors.ContextError)
		if !ok {
			break
		}
		curr = ctxErr.Err
	}
	return fmt.Sprintf("Unexpected error:\n%s", err)
}

// HandleFatalError prints the error and exits.
func HandleFatalError(err error) {
	fmt.Fprintln(os.Stderr, PrintableMessage(err))
	os.Exit(1)
}

// HandlePanic converts panics into a readable crash report. It should be
// deferred at the top of main.
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	log.WithField("panic", r).Error("La Forge crashed")
	fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
	os.Exit(1)
}
