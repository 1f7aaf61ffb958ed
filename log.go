package jobrunner

import (
	"github.com/domonda/golog"
	rootlog "github.com/domonda/golog/log"
)

var log = rootlog.NewPackageLogger("jobrunner")

func OverrideLogger(logger *golog.Logger) {
	log = logger
}
