package collecting

import "time"

const (
	defaultProcRoot = "/proc"
	defaultSysRoot  = "/sys"

	powercapDir     = "class/powercap"
	raplPackageZone = "package"

	millidegrees = 1000

	taskstatsTimeout = time.Second
)
