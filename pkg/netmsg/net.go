package netmsg

import (
	"fmt"
	"strings"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// String length limits.
const (
	MaxStringCmdLength = 1024
	MaxPrintLength     = 2048
	MaxConVarName      = 260
	MaxConVarValue     = 260
	MaxConVars         = 255

	// TickScaleUp converts frame times to fixed point.
	TickScaleUp = 100000
)

// Tick carries the sender's simulation tick and frame timing.
type Tick struct {
	Base
	Tick            int32
	HostFrameTime   float32
	FrameTimeStdDev float32
}

func (*Tick) Type() int    { return protocol.NetTick }
func (*Tick) Name() string { return "net_Tick" }
func (*Tick) Group() Group { return GroupGeneric }

func (m *Tick) ReadFrom(r *bitbuf.Reader) bool {
	m.Tick = r.ReadInt32()
	m.HostFrameTime = float32(r.ReadUBits(16)) / TickScaleUp
	m.FrameTimeStdDev = float32(r.ReadUBits(16)) / TickScaleUp
	return !r.Overflowed()
}

func (m *Tick) WriteTo(w *bitbuf.Writer) bool {
	w.WriteInt32(m.Tick)
	w.WriteUBits(scaleFrameTime(m.HostFrameTime), 16)
	w.WriteUBits(scaleFrameTime(m.FrameTimeStdDev), 16)
	return !w.Overflowed()
}

func (m *Tick) String() string {
	return fmt.Sprintf("net_Tick: tick %d", m.Tick)
}

func scaleFrameTime(f float32) uint32 {
	v := f * TickScaleUp
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint32(v)
}

// StringCmd carries a console command string.
type StringCmd struct {
	Base
	Command string
}

func (*StringCmd) Type() int    { return protocol.NetStringCmd }
func (*StringCmd) Name() string { return "net_StringCmd" }
func (*StringCmd) Group() Group { return GroupStringCmd }

func (m *StringCmd) ReadFrom(r *bitbuf.Reader) bool {
	s, ok := r.ReadString(MaxStringCmdLength)
	m.Command = s
	return ok
}

func (m *StringCmd) WriteTo(w *bitbuf.Writer) bool {
	if len(m.Command) > MaxStringCmdLength {
		return false
	}
	w.WriteString(m.Command)
	return !w.Overflowed()
}

func (m *StringCmd) String() string {
	return fmt.Sprintf("net_StringCmd: %q", m.Command)
}

// ConVar is one name/value pair.
type ConVar struct {
	Name  string
	Value string
}

// SetConVar replicates console variables.
type SetConVar struct {
	Base
	ConVars []ConVar
}

func (*SetConVar) Type() int    { return protocol.NetSetConVar }
func (*SetConVar) Name() string { return "net_SetConVar" }
func (*SetConVar) Group() Group { return GroupStringCmd }

func (m *SetConVar) ReadFrom(r *bitbuf.Reader) bool {
	n := int(r.ReadUint8())
	m.ConVars = make([]ConVar, 0, n)
	for i := 0; i < n; i++ {
		name, ok := r.ReadString(MaxConVarName)
		if !ok {
			return false
		}
		value, ok := r.ReadString(MaxConVarValue)
		if !ok {
			return false
		}
		m.ConVars = append(m.ConVars, ConVar{Name: name, Value: value})
	}
	return !r.Overflowed()
}

func (m *SetConVar) WriteTo(w *bitbuf.Writer) bool {
	if len(m.ConVars) > MaxConVars {
		return false
	}
	w.WriteUint8(uint8(len(m.ConVars)))
	for _, cv := range m.ConVars {
		if len(cv.Name) > MaxConVarName || len(cv.Value) > MaxConVarValue {
			return false
		}
		w.WriteString(cv.Name)
		w.WriteString(cv.Value)
	}
	return !w.Overflowed()
}

func (m *SetConVar) String() string {
	parts := make([]string, len(m.ConVars))
	for i, cv := range m.ConVars {
		parts[i] = cv.Name + "=" + cv.Value
	}
	return "net_SetConVar: " + strings.Join(parts, " ")
}

// Print carries text for the peer's console.
type Print struct {
	Base
	Text string
}

func (*Print) Type() int    { return protocol.SvcPrint }
func (*Print) Name() string { return "svc_Print" }
func (*Print) Group() Group { return GroupGeneric }

func (m *Print) ReadFrom(r *bitbuf.Reader) bool {
	s, ok := r.ReadString(MaxPrintLength)
	m.Text = s
	return ok
}

func (m *Print) WriteTo(w *bitbuf.Writer) bool {
	if len(m.Text) > MaxPrintLength {
		return false
	}
	w.WriteString(m.Text)
	return !w.Overflowed()
}

func (m *Print) String() string {
	return fmt.Sprintf("svc_Print: %d chars", len(m.Text))
}

// RegisterNetMessages registers Tick, StringCmd, SetConVar and Print with
// no handlers. Callers attach handlers with SetHandler.
func RegisterNetMessages(r *Registry) error {
	if err := Register[Tick](r, nil); err != nil {
		return err
	}
	if err := Register[StringCmd](r, nil); err != nil {
		return err
	}
	if err := Register[SetConVar](r, nil); err != nil {
		return err
	}
	return Register[Print](r, nil)
}

// Compile-time interface satisfaction checks.
var (
	_ Message = (*Tick)(nil)
	_ Message = (*StringCmd)(nil)
	_ Message = (*SetConVar)(nil)
	_ Message = (*Print)(nil)
)
