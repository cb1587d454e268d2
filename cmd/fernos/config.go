package main

const (
	physEndFlag = "phys-end"
	tickHzFlag  = "tick-hz"
	dbDirFlag   = "fs-dir"
	appFlag     = "app"
	ticksFlag   = "ticks"
	pidFlag     = "pid"
)

func init() {
	bootCmd.Flags().Int(physEndFlag, 64, "Simulated physical RAM size in MiB.")
	bootCmd.Flags().Uint32(tickHzFlag, 1000, "Simulated timer tick rate in Hz.")
	bootCmd.Flags().String(dbDirFlag, "", "Directory for the filesystem service's Badger store (empty runs in-memory only).")
	bootCmd.Flags().String(appFlag, "", "Path to a raw UserApp image to exec into process 0 after boot.")
	bootCmd.Flags().Int(ticksFlag, 0, "Number of timer ticks to run after boot before printing state.")

	stepCmd.Flags().Int(ticksFlag, 1, "Number of timer ticks to advance.")
	stepCmd.Flags().Int(physEndFlag, 64, "Simulated physical RAM size in MiB.")
	stepCmd.Flags().Uint32(tickHzFlag, 1000, "Simulated timer tick rate in Hz.")
	stepCmd.Flags().String(dbDirFlag, "", "Directory for the filesystem service's Badger store (empty runs in-memory only).")

	psCmd.Flags().Int(physEndFlag, 64, "Simulated physical RAM size in MiB.")
	psCmd.Flags().String(dbDirFlag, "", "Directory for the filesystem service's Badger store (empty runs in-memory only).")

	lsofCmd.Flags().Int(pidFlag, 0, "Process id to list handles for.")
	lsofCmd.Flags().Int(physEndFlag, 64, "Simulated physical RAM size in MiB.")
	lsofCmd.Flags().String(dbDirFlag, "", "Directory for the filesystem service's Badger store (empty runs in-memory only).")

	dumpCmd.Flags().Int(physEndFlag, 64, "Simulated physical RAM size in MiB.")
	dumpCmd.Flags().String(dbDirFlag, "", "Directory for the filesystem service's Badger store (empty runs in-memory only).")
}
