package input

import (
	"time"

	"github.com/go-vgo/robotgo"
)

// DefaultActions wires Actions to robotgo.
func DefaultActions() Actions {
	return Actions{
		Click: func(x, y int) {
			robotgo.Move(x, y)
			robotgo.Click("left")
		},
		DoubleClick: func(x, y int) {
			robotgo.Move(x, y)
			robotgo.Click("left")
			robotgo.MilliSleep(100)
			robotgo.Click("left")
		},
		WriteClipboard: robotgo.WriteAll,
		KeyTap: func(key string, mods ...string) error {
			args := make([]interface{}, len(mods))
			for i, m := range mods {
				args[i] = m
			}
			return robotgo.KeyTap(key, args...)
		},
		TypeStr: func(s string) {
			robotgo.TypeStr(s)
		},
		Location: robotgo.Location,
		Sleep:    time.Sleep,
	}
}
