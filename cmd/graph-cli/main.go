// Package main provides a command-line client for the Graph facade: page
// tokens, user and page lookups, and comment/post moderation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/social-graph-bridge/internal/cli"
	"github.com/fpang/social-graph-bridge/internal/config"
	"github.com/fpang/social-graph-bridge/internal/facebook"
	"github.com/fpang/social-graph-bridge/internal/graph"
	"github.com/fpang/social-graph-bridge/internal/lambdaboot"
	"github.com/fpang/social-graph-bridge/internal/logging"
	"github.com/fpang/social-graph-bridge/internal/profiler"
)

// CLI flags
var (
	tokenFlag       string
	userFieldsFlag  string
	pageFieldsFlag  string
	profileFlag     bool
	ssmFlag         bool
	interactiveFlag bool
	noColorFlag     bool
	timeoutFlag     time.Duration
)

var svc *facebook.Service

var rootCmd = &cobra.Command{
	Use:   "graph-cli",
	Short: "Command-line client for the Facebook Graph API",
	Long: `Graph CLI calls the Graph API through the same facade the Lambdas use.

The access token comes from --token, then $GRAPH_ACCESS_TOKEN, then the
configured default access token.

Examples:
  graph-cli user --token EAAB...
  graph-cli page-token 1234567890
  graph-cli comment hide 123_456 --profile
  graph-cli post update 123_789 "New text"`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()

		var cfg config.Config
		if ssmFlag {
			cfg = lambdaboot.LoadConfig(lambdaboot.InitAWS().SSM)
		} else {
			cfg = lambdaboot.LoadConfig(nil)
		}
		var opts []facebook.Option
		if profileFlag {
			opts = append(opts, facebook.WithStopwatch(profiler.NewStopwatch()))
		}
		svc = facebook.New(cfg.Client(), opts...)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		printProfiles()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Access token (default $"+cli.TokenEnvVar+" or the configured default)")
	rootCmd.PersistentFlags().BoolVar(&profileFlag, "profile", false, "Print a table of the Graph calls made")
	rootCmd.PersistentFlags().BoolVar(&ssmFlag, "ssm", false, "Fill unset secrets from SSM Parameter Store")
	rootCmd.PersistentFlags().BoolVarP(&interactiveFlag, "interactive", "i", false, "Prompt for the access token when none is set")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored JSON output")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Overall timeout")

	userCmd.Flags().StringVarP(&userFieldsFlag, "fields", "f", facebook.DefaultUserFields, "Fields to fetch")
	pageCmd.Flags().StringVarP(&pageFieldsFlag, "fields", "f", facebook.DefaultPageFields, "Fields to fetch")

	rootCmd.AddCommand(pageTokenCmd, userCmd, pageCmd, validateTokenCmd,
		moderationCmd("comment", moderation{
			hide:   (*facebook.Service).HideComment,
			show:   (*facebook.Service).ShowComment,
			update: (*facebook.Service).UpdateComment,
			delete: (*facebook.Service).DeleteComment,
		}),
		moderationCmd("post", moderation{
			hide:   (*facebook.Service).HidePost,
			show:   (*facebook.Service).ShowPost,
			update: (*facebook.Service).UpdatePost,
			delete: (*facebook.Service).DeletePost,
		}),
	)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printProfiles() {
	if profileFlag && svc != nil {
		fmt.Fprint(os.Stderr, cli.ProfileTable(svc.Profiles()))
	}
}

// fail prints the calls made so far before exiting.
func fail(err error) {
	printProfiles()
	cli.HandleGraphError(err)
}

func token() string {
	return cli.ResolveToken(tokenFlag, interactiveFlag)
}

func runContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeoutFlag)
}

func printJSON(v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode output")
	}
	if err := cli.PrintJSON(os.Stdout, body, !noColorFlag); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func printResponse(resp *graph.Response) {
	if err := cli.PrintJSON(os.Stdout, resp.Body, !noColorFlag); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

var pageTokenCmd = &cobra.Command{
	Use:   "page-token <page-id>",
	Short: "Exchange a user token for a long-lived page access token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := runContext()
		defer cancel()
		pageToken, err := svc.LongLivedPageAccessToken(ctx, args[0], token())
		if err != nil {
			fail(err)
		}
		printJSON(map[string]string{"pageId": args[0], "accessToken": pageToken})
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Fetch the user the token belongs to",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := runContext()
		defer cancel()
		node, err := svc.UserData(ctx, token(), userFieldsFlag)
		if err != nil {
			fail(err)
		}
		printJSON(node)
	},
}

var pageCmd = &cobra.Command{
	Use:   "page <page-id>",
	Short: "Fetch a page",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := runContext()
		defer cancel()
		node, err := svc.PageData(ctx, args[0], token(), pageFieldsFlag)
		if err != nil {
			fail(err)
		}
		printJSON(node)
	},
}

var validateTokenCmd = &cobra.Command{
	Use:   "validate-token",
	Short: "Check that an access token is valid and not expired",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := runContext()
		defer cancel()
		accessToken, err := svc.ValidateAccessToken(ctx, token())
		if err != nil {
			fail(err)
		}
		out := map[string]any{"valid": true, "expires": "never"}
		if !accessToken.ExpiresAt.IsZero() {
			out["expires"] = accessToken.ExpiresAt.UTC().Format(time.RFC3339)
		}
		printJSON(out)
	},
}

type moderation struct {
	hide   func(*facebook.Service, context.Context, string, string) (*graph.Response, error)
	show   func(*facebook.Service, context.Context, string, string) (*graph.Response, error)
	update func(*facebook.Service, context.Context, string, string, string) (*graph.Response, error)
	delete func(*facebook.Service, context.Context, string, string) (*graph.Response, error)
}

// moderationCmd builds "<kind> hide|show|update|delete" for comments and posts.
func moderationCmd(kind string, m moderation) *cobra.Command {
	parent := &cobra.Command{
		Use:   kind,
		Short: "Moderate a " + kind,
	}

	simple := func(action string, call func(*facebook.Service, context.Context, string, string) (*graph.Response, error)) *cobra.Command {
		return &cobra.Command{
			Use:   action + " <" + kind + "-id>",
			Short: action + " a " + kind,
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				ctx, cancel := runContext()
				defer cancel()
				resp, err := call(svc, ctx, args[0], token())
				if err != nil {
					fail(err)
				}
				printResponse(resp)
			},
		}
	}

	update := &cobra.Command{
		Use:   "update <" + kind + "-id> <message>",
		Short: "Replace the message of a " + kind,
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := runContext()
			defer cancel()
			resp, err := m.update(svc, ctx, args[0], args[1], token())
			if err != nil {
				fail(err)
			}
			printResponse(resp)
		},
	}

	parent.AddCommand(simple("hide", m.hide), simple("show", m.show), update, simple("delete", m.delete))
	return parent
}
