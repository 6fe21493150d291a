package version

// Version represents the Major.Minor.Patch version tag
// from GIT, supplied by the Makefile - else 'dev' as a
// default
var Version string = "dev"

// UserAgent is sent with every Blink API request
func UserAgent() string {
	return "blink-homekit/" + Version
}
