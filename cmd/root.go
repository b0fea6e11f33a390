/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"github.com/blacktop/pinpost/internal/config"
	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	logJSON    bool
	apiURL     string

	cfg config.Config
)

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pinpost",
		Short: "Compose a post and publish it to Pinterest and friends",
		Long: "pinpost composes a post (title, description, hashtags, image) and publishes it to " +
			"Pinterest, Mastodon and Bluesky. Run `pinpost serve` for the web form and proxy API, " +
			"or `pinpost publish` to post from the command line.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./pinpost.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log JSON lines instead of text")
	cmd.PersistentFlags().StringVar(&apiURL, "api", "", "Use a running pinpost server (e.g. http://localhost:8080) instead of calling platforms directly")

	cmd.AddCommand(
		newServeCommand(),
		newPublishCommand(),
		newBoardsCommand(),
		newWhoAmICommand(),
		newCompletionCommand(),
	)

	return cmd
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	logutil.SetVerbose(verbose)

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	if logJSON || cfg.LogJSON {
		logutil.SetJSON(true)
	}
	return nil
}
