// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-mantavfs/pkg/cli"
	"github.com/jeremyhahn/go-mantavfs/pkg/version"
)

var (
	cfgFile      string
	viperConfig  *viper.Viper
	globalConfig *cli.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mantavfs",
	Short: "Browse and serve an object store as a filesystem",
	Long: `mantavfs mounts an object store as a hierarchical filesystem with
Manta-style paths. "~~" expands to the configured user's home directory.

Supported Storage Backends:
  - memory     : In-process store (useful with serve)
  - local      : Local filesystem storage
  - s3         : AWS S3 (build tag awss3)
  - minio      : MinIO (build tag minio)
  - gcs        : Google Cloud Storage (build tag gcpstorage)
  - azure      : Azure Blob Storage (build tag azureblob)

Configuration can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (MANTAVFS_*, plus MANTA_USER and MANTA_URL)
  - Configuration file (~/.mantavfs.yaml or ./.mantavfs.yaml)
  - Default values (lowest priority)`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		viperConfig, err = cli.InitConfig(cfgFile)
		if err != nil {
			return err
		}

		if err := viperConfig.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}

		globalConfig = cli.GetConfig(viperConfig)
		return nil
	},
}

func outputFormat() cli.OutputFormat {
	return cli.OutputFormat(globalConfig.OutputFormat)
}

func printError(cmd *cobra.Command, err error) {
	fmt.Fprint(cmd.ErrOrStderr(), cli.FormatError(err, outputFormat()))
}

func printSuccess(cmd *cobra.Command, message string, data any) {
	result := &cli.OperationResult{Success: true, Message: message, Data: data}
	fmt.Fprint(cmd.OutOrStdout(), cli.FormatOperationResult(result, outputFormat()))
}

// withContext mounts a session for the duration of fn and reports fn's
// error in the selected output format.
func withContext(cmd *cobra.Command, fn func(ctx *cli.CommandContext) error) error {
	ctx, err := cli.NewCommandContext(globalConfig)
	if err != nil {
		printError(cmd, err)
		return err
	}
	defer func() { _ = ctx.Close() }()
	ctx.In = cmd.InOrStdin()
	ctx.Out = cmd.OutOrStdout()

	if err := fn(ctx); err != nil {
		printError(cmd, err)
		return err
	}
	return nil
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory",
	Example: `  mantavfs ls                       # List the home directory
  mantavfs ls ~~/stor/logs          # List a directory under home
  mantavfs ls /user/public -o table # Table output`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "~~"
		if len(args) == 1 {
			dir = args[0]
		}
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			entries, err := ctx.ListCommand(dir)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatListResult(dir, entries, outputFormat()))
			return nil
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path> [output-file]",
	Short: "Download an object",
	Long: `Download an object. If output-file is not specified or is '-', the content
is written to stdout. --offset and --length read a byte range.`,
	Example: `  mantavfs cat ~~/stor/a.txt                    # Write to stdout
  mantavfs cat ~~/stor/a.txt a.txt              # Write to a file
  mantavfs cat ~~/stor/big.bin --offset 1024 --length 16`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath := ""
		if len(args) == 2 {
			outputPath = args[1]
		}
		offset, _ := cmd.Flags().GetInt64("offset") //nolint:errcheck // flags are validated by cobra
		length, _ := cmd.Flags().GetInt64("length") //nolint:errcheck // flags are validated by cobra

		return withContext(cmd, func(ctx *cli.CommandContext) error {
			n, err := ctx.GetCommand(args[0], outputPath, offset, length)
			if err != nil {
				return err
			}
			if outputPath != "" && outputPath != "-" {
				printSuccess(cmd, fmt.Sprintf("Downloaded '%s' to '%s' (%d bytes)", args[0], outputPath, n), nil)
			}
			return nil
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <source-file> <path>",
	Short: "Upload a file",
	Long: `Upload a local file to the given path, creating missing parent directories.
Use '-' as the source-file to read from stdin.`,
	Example: `  mantavfs put file.txt ~~/stor/file.txt
  cat file.txt | mantavfs put - ~~/stor/file.txt
  mantavfs put file.txt ~~/stor/file.txt --attr owner=ops,tier=hot`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs, _ := cmd.Flags().GetStringToString("attr") //nolint:errcheck // flags are validated by cobra

		return withContext(cmd, func(ctx *cli.CommandContext) error {
			n, err := ctx.PutCommand(args[1], args[0], attrs)
			if err != nil {
				return err
			}
			source := args[0]
			if source == "-" {
				source = "stdin"
			}
			printSuccess(cmd, fmt.Sprintf("Uploaded %s to '%s' (%d bytes)", source, args[1], n),
				map[string]any{"path": args[1], "bytes": n})
			return nil
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Describe a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			info, err := ctx.StatCommand(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatStatResult(info, outputFormat()))
			return nil
		})
	},
}

var attrCmd = &cobra.Command{
	Use:   "attr",
	Short: "Manage user attributes",
	Long:  `Read and modify the user attributes stored with an object or directory.`,
}

var attrGetCmd = &cobra.Command{
	Use:     "get <path>",
	Short:   "Show all attributes",
	Example: `  mantavfs attr get ~~/stor/a.txt`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			attrs, err := ctx.AttributesCommand(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatAttributesResult(args[0], attrs, outputFormat()))
			return nil
		})
	},
}

var attrSetCmd = &cobra.Command{
	Use:     "set <path> <key> <value>",
	Short:   "Set an attribute",
	Example: `  mantavfs attr set ~~/stor/a.txt owner ops`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			if err := ctx.SetAttributeCommand(args[0], args[1], args[2]); err != nil {
				return err
			}
			printSuccess(cmd, fmt.Sprintf("Set '%s' on '%s'", args[1], args[0]), nil)
			return nil
		})
	},
}

var attrRemoveCmd = &cobra.Command{
	Use:     "rm <path> <key>",
	Short:   "Remove an attribute",
	Example: `  mantavfs attr rm ~~/stor/a.txt owner`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			if err := ctx.RemoveAttributeCommand(args[0], args[1]); err != nil {
				return err
			}
			printSuccess(cmd, fmt.Sprintf("Removed '%s' from '%s'", args[1], args[0]), nil)
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file or directory",
	Long: `Delete a file or an empty directory. --selector children or all removes
the selected part of a directory tree, deepest entries first.`,
	Example: `  mantavfs rm ~~/stor/a.txt
  mantavfs rm ~~/stor/logs --selector all`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selector, _ := cmd.Flags().GetString("selector") //nolint:errcheck // flags are validated by cobra

		return withContext(cmd, func(ctx *cli.CommandContext) error {
			n, err := ctx.DeleteCommand(args[0], selector)
			if err != nil {
				return err
			}
			printSuccess(cmd, fmt.Sprintf("Deleted %d entr%s under '%s'", n, pluralY(n), args[0]),
				map[string]any{"path": args[0], "deleted": n})
			return nil
		})
	},
}

var mvCmd = &cobra.Command{
	Use:     "mv <source> <destination>",
	Short:   "Rename a file or directory",
	Example: `  mantavfs mv ~~/stor/a.txt ~~/stor/b.txt`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			if err := ctx.MoveCommand(args[0], args[1]); err != nil {
				return err
			}
			printSuccess(cmd, fmt.Sprintf("Renamed '%s' to '%s'", args[0], args[1]), nil)
			return nil
		})
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <source> <destination>",
	Short: "Copy a file or directory",
	Long: `Copy a file, or a directory as far as --selector allows. Files are
linked server side when the store supports it.`,
	Example: `  mantavfs cp ~~/stor/a.txt ~~/stor/b.txt
  mantavfs cp ~~/stor/logs ~~/stor/logs-backup --selector all`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		selector, _ := cmd.Flags().GetString("selector") //nolint:errcheck // flags are validated by cobra

		return withContext(cmd, func(ctx *cli.CommandContext) error {
			if err := ctx.CopyCommand(args[0], args[1], selector); err != nil {
				return err
			}
			printSuccess(cmd, fmt.Sprintf("Copied '%s' to '%s'", args[0], args[1]), nil)
			return nil
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:     "mkdir <path>",
	Short:   "Create a directory",
	Example: `  mantavfs mkdir ~~/stor/reports/2025`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			if err := ctx.MkdirCommand(args[0]); err != nil {
				return err
			}
			printSuccess(cmd, fmt.Sprintf("Created '%s'", args[0]), nil)
			return nil
		})
	},
}

var urlCmd = &cobra.Command{
	Use:   "url <path>",
	Short: "Print a shareable URL",
	Long: `Print a URL that reads the object without credentials. Paths under
~~/public get the plain store URL; anything else gets a signed URL valid
for one hour.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			u, err := ctx.URLCommand(args[0])
			if err != nil {
				return err
			}
			if outputFormat() == cli.FormatText {
				fmt.Fprintln(cmd.OutOrStdout(), u)
				return nil
			}
			printSuccess(cmd, u, map[string]any{"path": args[0], "url": u})
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.OutOrStdout(), cli.DisplayConfig(globalConfig, globalConfig.OutputFormat))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.OutOrStdout(), cli.FormatVersionResult(version.GetInfo(), outputFormat()))
		return nil
	},
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func init() {
	cobra.AddTemplateFunc("hasExamples", func(cmd *cobra.Command) bool {
		return len(cmd.Example) > 0
	})
	rootCmd.SetUsageTemplate(usageTemplate)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mantavfs.yaml)")
	rootCmd.PersistentFlags().String("backend", cli.BackendLocal, "storage backend (memory, local, remote, s3, minio, gcs, azure)")
	rootCmd.PersistentFlags().String("backend-path", "./storage", "path for local backend")
	rootCmd.PersistentFlags().String("backend-bucket", "", "bucket or container name for cloud backends")
	rootCmd.PersistentFlags().String("backend-region", "", "region for cloud backends")
	rootCmd.PersistentFlags().String("backend-key", "", "access key, azure account name or gcs credentials file")
	rootCmd.PersistentFlags().String("backend-secret", "", "secret key for cloud backends")
	rootCmd.PersistentFlags().String("backend-url", "", "endpoint URL for cloud backends, or the gateway URL for remote")
	rootCmd.PersistentFlags().String("backend-prefix", "", "key prefix the filesystem root maps to")
	rootCmd.PersistentFlags().String("signing-key", "", "URL signing key for memory and local backends")
	rootCmd.PersistentFlags().String("user", "", "account name; the home directory is /<account>")
	rootCmd.PersistentFlags().String("url", "", "public base URL used in generated links")
	rootCmd.PersistentFlags().String("home", "", "override the home directory")
	rootCmd.PersistentFlags().StringP("output-format", "o", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to a rotating file instead of stderr")

	catCmd.Flags().Int64("offset", 0, "start reading at this byte offset")
	catCmd.Flags().Int64("length", 0, "read at most this many bytes")
	putCmd.Flags().StringToString("attr", map[string]string{}, "attributes to set (key=value pairs)")
	rmCmd.Flags().String("selector", "", "delete a tree: self, children or all")
	cpCmd.Flags().String("selector", "self", "copy depth: self, children or all")

	registerServeFlags(serveCmd)

	attrCmd.AddCommand(attrGetCmd, attrSetCmd, attrRemoveCmd)
	rootCmd.AddCommand(lsCmd, catCmd, putCmd, statCmd, attrCmd, rmCmd, mvCmd, cpCmd,
		mkdirCmd, urlCmd, serveCmd, configCmd, versionCmd)

	for _, cmd := range rootCmd.Commands() {
		cmd.SetUsageTemplate(usageTemplate)
		for _, subCmd := range cmd.Commands() {
			subCmd.SetUsageTemplate(usageTemplate)
		}
	}
}

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
