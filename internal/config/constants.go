package config

// Version is reported by `glitteral version`.
const Version = "0.1.0"

// ConfigFileName is looked up from the working directory upwards.
const ConfigFileName = "glitteral.yaml"

// ScriptFileExtensions are recognized call-script extensions
var ScriptFileExtensions = []string{".yaml", ".yml"}

const (
	DefaultListenAddr  = "127.0.0.1:7420"
	DefaultJournalPath = "glitteral-journal.db"
	// DefaultMaxRangeLen caps range for hosts that do not configure one.
	DefaultMaxRangeLen = 1 << 24
)

// Builtin families
const (
	FamilyArithmetic  = "arithmetic"
	FamilyLogical     = "logical"
	FamilyContainer   = "container"
	FamilyEnvironment = "environment"
)

// Built-in function names
const (
	EqualFuncName      = "equal"
	NotEqualFuncName   = "not_equal"
	AddFuncName        = "add"
	SubtractFuncName   = "subtract"
	MultiplyFuncName   = "multiply"
	DivideFuncName     = "divide"
	GreaterFuncName    = "greater"
	LessFuncName       = "less"
	NotLessFuncName    = "not_less"
	NotGreaterFuncName = "not_greater"

	AndFuncName = "and"
	OrFuncName  = "or"

	AppendFuncName           = "append"
	LengthFuncName           = "length"
	RangeFuncName            = "range"
	ListGetFuncName          = "list_get_subscript"
	DictGetFuncName          = "dictionary_get_subscript"
	PrintlnContainerFuncName = "println_container"

	PrintFuncName        = "print"
	PrintlnFuncName      = "println"
	PrintIntegerFuncName = "print_integer"
	InputFuncName        = "input"
	SleepFuncName        = "sleep"
	CurrentTimeFuncName  = "current_time"
	ParseFloatFuncName   = "parse_float"
)

// SurfaceAliases maps the operator spellings of the surface syntax to
// builtin names.
var SurfaceAliases = map[string]string{
	"+":       AddFuncName,
	"−":       SubtractFuncName,
	"-":       SubtractFuncName,
	"⋅":       MultiplyFuncName,
	"*":       MultiplyFuncName,
	"÷":       DivideFuncName,
	"/":       DivideFuncName,
	"=":       EqualFuncName,
	"≠":       NotEqualFuncName,
	">":       GreaterFuncName,
	"<":       LessFuncName,
	"≥":       NotLessFuncName,
	"≤":       NotGreaterFuncName,
	"append!": AppendFuncName,
}

// LegacyAliases are the names emitted by the first code generator, which
// specialized everything to integers.
var LegacyAliases = map[string]string{
	"integers_equal":                   EqualFuncName,
	"integers_not_equal":               NotEqualFuncName,
	"add_integers":                     AddFuncName,
	"subtract_integers":                SubtractFuncName,
	"multiply_integers":                MultiplyFuncName,
	"divide_integers":                  DivideFuncName,
	"str_int_dictionary_get_subscript": DictGetFuncName,
}
