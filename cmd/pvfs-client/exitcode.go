package main

// Exit codes per spec.md §6: clean shutdown, a distinct retriable code
// for failures a supervisor should restart the daemon for (remount,
// device init or transport init failure), and a fatal code for
// everything else (e.g. a
// failed helper-goroutine spawn).
const (
	exitOK        = 0
	exitRetriable = 75 // sysexits.h EX_TEMPFAIL, the closest stdlib-adjacent convention for "retry me"
	exitFatal     = 1
)
