package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/laforge-app/laforge/cmd/daemon"
	"github.com/laforge-app/laforge/cmd/projects"
	syncCmd "github.com/laforge-app/laforge/cmd/sync"
	"github.com/laforge-app/laforge/cmd/util"
	"github.com/laforge-app/laforge/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "LAFORGE_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "laforge",
		Short:        "Publish local web projects to their remote hosts.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		daemon.New(),
		projects.New(),
		syncCmd.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
