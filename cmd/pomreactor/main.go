package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ritzau/pomreactor/pkg/builder"
	"github.com/ritzau/pomreactor/pkg/config"
	"github.com/ritzau/pomreactor/pkg/logging"
)

var version = "dev"

// errFailed signals a failure that was already reported to the user
var errFailed = errors.New("reactor failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pomreactor",
		Short:         "Build, sort and watch Maven project reactors",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			level, err := cfg.LogLevel()
			if err != nil {
				return err
			}
			logging.SetLevel(level)
			return nil
		},
	}

	addConfigFlags(root.PersistentFlags())

	root.AddCommand(
		newSortCmd(),
		newBuildCmd(),
		newCyclesCmd(),
		newWatchCmd(),
		newServeCmd(),
	)
	return root
}

// addConfigFlags declares a flag for every configuration key
func addConfigFlags(f *pflag.FlagSet) {
	f.StringP("basedir", "b", ".", "Directory searched for pom.xml files")
	f.StringSliceP("file", "f", nil, "POM files to build instead of searching the basedir")
	f.Bool("recursive", true, "Follow the modules of aggregator POMs")
	f.String("local-repository", "", "Local repository (default ~/.m2/repository)")
	f.StringSlice("remote-repositories", nil, "Additional remote repositories as id=url")
	f.String("repository-merging", "pom_dominant", "Repository order: pom_dominant or request_dominant")
	f.Bool("resolve-dependencies", false, "Resolve the dependencies of every project")
	f.Bool("process-plugins", true, "Inject lifecycle plugins and apply plugin configuration")
	f.String("validation-level", "strict", "Model validation level: minimal, 2.0, 3.0, 3.1 or strict")
	f.String("parent-policy", "lenient", "Parent build failures: lenient or strict")
	f.StringSliceP("active-profiles", "P", nil, "Profiles to activate")
	f.StringSlice("inactive-profiles", nil, "Profiles to deactivate")
	f.BoolP("offline", "o", false, "Never consult remote repositories")
	f.Int("model-cache-size", builder.DefaultModelCacheSize, "Raw models kept between builds, 0 disables the cache")
	f.String("format", "text", "Output format: text, json or yaml")
	f.Int("port", 8080, "Port for the web server")
	f.Int("watch-quiet-ms", 300, "Quiet period before a change triggers a rebuild")
	f.String("verbosity", "", "Log level: error, warn, info or debug")
	f.CountP("verbose", "v", "Increase log verbosity")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
