package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// TokenEnvVar supplies the access token when --token is not given.
const TokenEnvVar = "GRAPH_ACCESS_TOKEN"

// ResolveToken returns flagValue, then $GRAPH_ACCESS_TOKEN, and finally asks
// on stdin when interactive is set. An empty result means the configured
// default access token is used.
func ResolveToken(flagValue string, interactive bool) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(TokenEnvVar); v != "" {
		return v
	}
	if !interactive {
		return ""
	}
	return PromptForToken(os.Stdin, os.Stderr)
}

// PromptForToken reads one line from in after printing a prompt to out.
func PromptForToken(in io.Reader, out io.Writer) string {
	fmt.Fprint(out, "Access token [default]: ")

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read input, using the default access token")
		return ""
	}
	return strings.TrimSpace(input)
}
