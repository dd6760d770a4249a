package app

// Key binding constants used in handleKey.
const (
	KeyQuit          = "q"
	KeyCtrlC         = "ctrl+c"
	KeyEsc           = "esc"
	KeyEnter         = "enter"
	KeyOpen          = "o"
	KeyTogglePlay    = " "
	KeyPlaySelection = "p"
	KeyPreview       = "v"
	KeyEditPrompt    = "e"
	KeyReply         = "r"
	KeyNewAnalysis   = "n"
	KeyCycleModel    = "m"
	KeyTempUp        = "+"
	KeyTempUpAlt     = "="
	KeyTempDown      = "-"
	KeyThinking      = "t"
	KeyExport        = "w"
	KeyUp            = "up"
	KeyDown          = "down"
	KeyPgUp          = "pgup"
	KeyPgDown        = "pgdown"
)

// regionKeys are forwarded to the waveform widget.
var regionKeys = map[string]bool{
	"h": true, "l": true, "H": true, "L": true,
	"[": true, "]": true, "left": true, "right": true,
}
