package flags

const (
	// ForceFlagName exposes the shared cache-bypass flag name.
	ForceFlagName = "force"
	// ForceFlagShorthand provides the shorthand for the force flag.
	ForceFlagShorthand = "f"
	// ForceFlagUsage describes the force flag purpose.
	ForceFlagUsage = "Ignore cached artifacts and run the task"
	// SilentFlagName exposes the shared silent flag name.
	SilentFlagName = "silent"
	// SilentFlagShorthand provides the shorthand for the silent flag.
	SilentFlagShorthand = "q"
	// SilentFlagUsage describes the silent flag purpose.
	SilentFlagUsage = "Suppress progress output"
	// PathFlagName exposes the shared maidfile path flag name.
	PathFlagName = "path"
	// PathFlagShorthand provides the shorthand for the path flag.
	PathFlagShorthand = "p"
	// PathFlagUsage describes the path flag purpose.
	PathFlagUsage = "Path to the maidfile or the directory to search from"
)
