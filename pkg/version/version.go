package version

import (
	"fmt"
	"strconv"
	"time"
)

// Set at build time:
//
//	go build -ldflags "-X .../pkg/version.version=$(git describe) -X .../pkg/version.buildTime=$(date +%s)"
var (
	version   = "unknown"
	buildTime = ""
)

func Version() string {
	return version
}

func BuildTime() (time.Time, error) {
	if len(buildTime) == 0 {
		return time.Time{}, fmt.Errorf("build time not set")
	}
	epoch, err := strconv.ParseInt(buildTime, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(epoch, 0), nil
}
