// Package version carries the build version stamped by the linker:
//
//	go build -ldflags "-X github.com/corvusHold/changenotify/internal/version.Tag=v1.2.3"
package version

var Tag = "dev"

// String returns the build version, "dev" when Tag was stamped empty.
func String() string {
	if Tag == "" {
		return "dev"
	}
	return Tag
}

// UserAgent identifies a binary of this module in outgoing HTTP requests.
func UserAgent(binary string) string { return binary + "/" + String() }
