// Package guard forces test mode for any test binary importing it, so that
// main packages exercised from tests never dial Postgres, Redis or SMTP.
package guard

import (
	"os"

	"github.com/storefront/storefront-api/internal/app"
)

func init() {
	if os.Getenv(app.TestModeEnv) == "" {
		_ = os.Setenv(app.TestModeEnv, "1")
	}
	app.RefreshTestMode()
}
