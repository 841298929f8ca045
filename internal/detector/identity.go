package detector

import "fmt"

// Identity pins a pid to the kernel start time observed when the process
// was spawned. A bare pid can be reused by an unrelated process after the
// original exits; comparing start times closes that hole.
type Identity struct {
	PID       int
	StartUnix int64 // kernel start time in Unix seconds; 0 means unknown
}

// Alive returns true if the pid exists and, when a start time is pinned,
// the current process at that pid has the same start time. Start times are
// compared with one second of slack to absorb tick/boot-time rounding.
func (id Identity) Alive() bool {
	if !Alive(id.PID) {
		return false
	}
	if id.StartUnix <= 0 {
		return true
	}
	cur := StartUnix(id.PID)
	if cur <= 0 {
		return true // cannot verify; trust pid existence
	}
	diff := cur - id.StartUnix
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func (id Identity) Describe() string {
	if id.StartUnix > 0 {
		return fmt.Sprintf("pid:%d start:%d", id.PID, id.StartUnix)
	}
	return fmt.Sprintf("pid:%d", id.PID)
}
