package combo

// VK represents a Win32 virtual-key code. The simulation layer and the
// Windows hotkey layer both speak this vocabulary; other platforms translate
// from it.
type VK uint16

const (
	vkBackspace VK = 0x08
	vkTab       VK = 0x09
	vkReturn    VK = 0x0D
	vkShift     VK = 0x10
	vkControl   VK = 0x11
	vkMenu      VK = 0x12
	vkPause     VK = 0x13
	vkCapital   VK = 0x14
	vkEscape    VK = 0x1B
	vkSpace     VK = 0x20
	vkPrior     VK = 0x21
	vkNext      VK = 0x22
	vkEnd       VK = 0x23
	vkHome      VK = 0x24
	vkLeft      VK = 0x25
	vkUp        VK = 0x26
	vkRight     VK = 0x27
	vkDown      VK = 0x28
	vkSnapshot  VK = 0x2C
	vkInsert    VK = 0x2D
	vkDelete    VK = 0x2E
	vkLWin      VK = 0x5B
	vkF1        VK = 0x70
	vkOem1      VK = 0xBA // ;:
	vkOemPlus   VK = 0xBB // =+
	vkOemComma  VK = 0xBC
	vkOemMinus  VK = 0xBD
	vkOemPeriod VK = 0xBE
	vkOem2      VK = 0xBF // /?
	vkOem3      VK = 0xC0 // `~
	vkOem4      VK = 0xDB // [{
	vkOem5      VK = 0xDC // \|
	vkOem6      VK = 0xDD // ]}
	vkOem7      VK = 0xDE // '"
)

// Host accelerator tokens for modifiers.
const (
	TokenCommandOrControl = "CommandOrControl"
	TokenAlt              = "Alt"
	TokenShift            = "Shift"
	TokenSuper            = "Super"
)

// modifierOrder is the canonical modifier ordering used by Canonical.
var modifierOrder = []string{TokenCommandOrControl, TokenAlt, TokenShift, TokenSuper}

// modifierVK maps host modifier tokens to the left-agnostic modifier VK.
var modifierVK = map[string]VK{
	TokenCommandOrControl: vkControl,
	TokenAlt:              vkMenu,
	TokenShift:            vkShift,
	TokenSuper:            vkLWin,
}

// hostTokenByName maps lowercase human key names to host accelerator tokens.
// Function keys and single alphanumerics are handled separately.
var hostTokenByName = map[string]string{
	"control":          TokenCommandOrControl,
	"ctrl":             TokenCommandOrControl,
	"commandorcontrol": TokenCommandOrControl,
	"cmdorctrl":        TokenCommandOrControl,
	"meta":             TokenSuper,
	"win":              TokenSuper,
	"super":            TokenSuper,
	"command":          TokenSuper,
	"cmd":              TokenSuper,
	"os":               TokenSuper,
	"alt":              TokenAlt,
	"option":           TokenAlt,
	"shift":            TokenShift,

	"space":      "Space",
	"spacebar":   "Space",
	"arrowup":    "Up",
	"up":         "Up",
	"arrowdown":  "Down",
	"down":       "Down",
	"arrowleft":  "Left",
	"left":       "Left",
	"arrowright": "Right",
	"right":      "Right",
	"escape":     "Escape",
	"esc":        "Escape",
	"enter":      "Enter",
	"return":     "Enter",
	"tab":        "Tab",
	"backspace":  "Backspace",
	"delete":     "Delete",
	"del":        "Delete",
	"insert":     "Insert",
	"ins":        "Insert",
	"home":       "Home",
	"end":        "End",
	"pageup":     "PageUp",
	"pagedown":   "PageDown",
	"capslock":   "CapsLock",
	"pause":      "Pause",

	"printscreen": "PrintScreen",
	"prtsc":       "PrintScreen",

	"+":            "Plus",
	"plus":         "Plus",
	"-":            "Minus",
	"minus":        "Minus",
	"=":            "Equal",
	"equal":        "Equal",
	",":            "Comma",
	"comma":        "Comma",
	".":            "Period",
	"period":       "Period",
	"/":            "Slash",
	"slash":        "Slash",
	";":            "Semicolon",
	"semicolon":    "Semicolon",
	"'":            "Quote",
	"quote":        "Quote",
	"[":            "BracketLeft",
	"bracketleft":  "BracketLeft",
	"]":            "BracketRight",
	"bracketright": "BracketRight",
	"\\":           "Backslash",
	"backslash":    "Backslash",
	"`":            "Backquote",
	"backquote":    "Backquote",
	"grave":        "Backquote",
}

// displayByHostToken maps host tokens back to the human vocabulary. Tokens
// absent here display as-is.
var displayByHostToken = map[string]string{
	TokenCommandOrControl: "Ctrl",
	"Control":             "Ctrl",
	"CmdOrCtrl":           "Ctrl",
	TokenSuper:            "Win",
	"Meta":                "Win",
	"Command":             "Win",
}

// vkByHostToken resolves named non-modifier host tokens.
var vkByHostToken = map[string]VK{
	"Space":        vkSpace,
	"Up":           vkUp,
	"Down":         vkDown,
	"Left":         vkLeft,
	"Right":        vkRight,
	"Escape":       vkEscape,
	"Enter":        vkReturn,
	"Tab":          vkTab,
	"Backspace":    vkBackspace,
	"Delete":       vkDelete,
	"Insert":       vkInsert,
	"Home":         vkHome,
	"End":          vkEnd,
	"PageUp":       vkPrior,
	"PageDown":     vkNext,
	"CapsLock":     vkCapital,
	"Pause":        vkPause,
	"PrintScreen":  vkSnapshot,
	"Plus":         vkOemPlus,
	"Equal":        vkOemPlus,
	"Minus":        vkOemMinus,
	"Comma":        vkOemComma,
	"Period":       vkOemPeriod,
	"Slash":        vkOem2,
	"Semicolon":    vkOem1,
	"Quote":        vkOem7,
	"BracketLeft":  vkOem4,
	"BracketRight": vkOem6,
	"Backslash":    vkOem5,
	"Backquote":    vkOem3,
}

// registerableModifierNames is the modifier vocabulary accepted by
// IsRegisterable. Matching is case-insensitive.
var registerableModifierNames = map[string]struct{}{
	"ctrl":             {},
	"control":          {},
	"shift":            {},
	"alt":              {},
	"meta":             {},
	"win":              {},
	"super":            {},
	"command":          {},
	"commandorcontrol": {},
}
