package cli

import (
	"fmt"
	"io"

	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
)

// hints suggests what to do next for errors the user can act on.
var hints = map[pkgerrors.Code]string{
	pkgerrors.ErrCodePackageNotFound:     "check the spelling, or try: npmlens suggest <partial name>",
	pkgerrors.ErrCodeUpstreamUnavailable: "the service may be down or rate limiting; try again in a minute",
	pkgerrors.ErrCodeRateLimited:         "wait a minute before retrying",
	pkgerrors.ErrCodeNetwork:             "check your network connection",
	pkgerrors.ErrCodeInvalidConfig:       "see: npmlens config path",
	pkgerrors.ErrCodeStore:               "check the store URL with: npmlens config show",
}

// userMessage renders err without its code prefix.
func userMessage(err error) string {
	return pkgerrors.UserMessage(err)
}

// PrintError writes err to w the way commands report failures, with a hint
// for well-known error codes.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+userMessage(err))
	if hint, ok := hints[pkgerrors.GetCode(err)]; ok {
		fmt.Fprintln(w, "  "+StyleDim.Render(hint))
	}
}
