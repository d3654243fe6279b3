package vm

// Op is one bytecode instruction opcode. Names and semantics follow spec.md
// §4.7 (itself grounded on the original implementation's tea_bc.h BCDEF
// table); order here has no significance, unlike the C macro-generated enum.
type Op uint8

const (
	OpConstant Op = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	OpGetGlobal
	OpGetModule
	OpSetModule
	OpDefineModule

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNegate

	OpBAnd
	OpBOr
	OpBXor
	OpLShift
	OpRShift
	OpBNot

	OpEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpNot
	OpIs
	OpIsType
	OpIn

	OpJump
	OpJumpIfFalse
	OpJumpIfNil
	OpLoop
	OpEnd

	OpCall
	OpInvoke
	OpInvokeNew
	OpSuper
	OpReturn

	OpGetAttr
	OpPushAttr
	OpSetAttr
	OpGetIndex
	OpPushIndex
	OpSetIndex
	OpGetSuper

	OpList
	OpMap
	OpListItem
	OpMapField
	OpListExtend
	OpRange
	OpUnpack
	OpUnpackRest

	OpClosure
	OpClass
	OpMethod
	OpInherit

	OpGetIter
	OpForIter

	OpImportName
	OpImportString
	OpImportFmt
	OpImportVariable
	OpImportAlias
	OpImportEnd

	OpDefineOptional
	OpMultiCase
	OpCompareJump

	opCount
)

// operandBytes gives the number of immediate operand bytes that follow the
// opcode byte itself. CLOSURE carries an additional variable-length tail in
// the code array: one isLocal/index byte pair per upvalue, as many pairs as
// the child prototype has upvalue descriptors, so its full length is not in
// this table.
//
// DEFINE_OPTIONAL's listed width (2: nparams, nopts) covers only its fixed
// header; it is followed by a nopts+1 entry jump table (2 bytes each, see
// interp.go) whose length the disassembler must compute from the nopts byte
// rather than from this table, the same exception CLOSURE needs.
var operandBytes = [opCount]int{
	OpConstant: 1, OpNil: 0, OpTrue: 0, OpFalse: 0, OpPop: 0,
	OpGetLocal: 1, OpSetLocal: 1, OpGetUpvalue: 1, OpSetUpvalue: 1, OpCloseUpvalue: 0,

	OpGetGlobal: 1, OpGetModule: 1, OpSetModule: 1, OpDefineModule: 2,

	OpAdd: 0, OpSub: 0, OpMul: 0, OpDiv: 0, OpMod: 0, OpPow: 0, OpNegate: 0,
	OpBAnd: 0, OpBOr: 0, OpBXor: 0, OpLShift: 0, OpRShift: 0, OpBNot: 0,

	OpEqual: 0, OpLess: 0, OpLessEqual: 0, OpGreater: 0, OpGreaterEqual: 0,
	OpNot: 0, OpIs: 0, OpIsType: 1, OpIn: 0,

	OpJump: 2, OpJumpIfFalse: 2, OpJumpIfNil: 2, OpLoop: 2, OpEnd: 2,

	OpCall: 1, OpInvoke: 2, OpInvokeNew: 1, OpSuper: 2, OpReturn: 0,

	OpGetAttr: 1, OpPushAttr: 1, OpSetAttr: 1, OpGetIndex: 0, OpPushIndex: 0,
	OpSetIndex: 0, OpGetSuper: 1,

	OpList: 1, OpMap: 1, OpListItem: 0, OpMapField: 0, OpListExtend: 0,
	OpRange: 0, OpUnpack: 1, OpUnpackRest: 2,

	OpClosure: 1, OpClass: 1, OpMethod: 1, OpInherit: 0,

	OpGetIter: 2, OpForIter: 2,

	OpImportName: 1, OpImportString: 1, OpImportFmt: 0, OpImportVariable: 1,
	OpImportAlias: 0, OpImportEnd: 0,

	OpDefineOptional: 2, OpMultiCase: 2, OpCompareJump: 2,
}

var opNames = [opCount]string{
	OpConstant: "CONSTANT", OpNil: "NIL", OpTrue: "TRUE", OpFalse: "FALSE", OpPop: "POP",
	OpGetLocal: "GET_LOCAL", OpSetLocal: "SET_LOCAL", OpGetUpvalue: "GET_UPVALUE",
	OpSetUpvalue: "SET_UPVALUE", OpCloseUpvalue: "CLOSE_UPVALUE",

	OpGetGlobal: "GET_GLOBAL", OpGetModule: "GET_MODULE", OpSetModule: "SET_MODULE",
	OpDefineModule: "DEFINE_MODULE",

	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpPow: "POW",
	OpNegate: "NEGATE",
	OpBAnd:   "BAND", OpBOr: "BOR", OpBXor: "BXOR", OpLShift: "LSHIFT", OpRShift: "RSHIFT",
	OpBNot: "BNOT",

	OpEqual: "EQUAL", OpLess: "LESS", OpLessEqual: "LESS_EQUAL", OpGreater: "GREATER",
	OpGreaterEqual: "GREATER_EQUAL", OpNot: "NOT", OpIs: "IS", OpIsType: "ISTYPE", OpIn: "IN",

	OpJump: "JUMP", OpJumpIfFalse: "JUMP_IF_FALSE", OpJumpIfNil: "JUMP_IF_NIL",
	OpLoop: "LOOP", OpEnd: "END",

	OpCall: "CALL", OpInvoke: "INVOKE", OpInvokeNew: "INVOKE_NEW", OpSuper: "SUPER",
	OpReturn: "RETURN",

	OpGetAttr: "GET_ATTR", OpPushAttr: "PUSH_ATTR", OpSetAttr: "SET_ATTR",
	OpGetIndex: "GET_INDEX", OpPushIndex: "PUSH_INDEX", OpSetIndex: "SET_INDEX",
	OpGetSuper: "GET_SUPER",

	OpList: "LIST", OpMap: "MAP", OpListItem: "LIST_ITEM", OpMapField: "MAP_FIELD",
	OpListExtend: "LIST_EXTEND", OpRange: "RANGE", OpUnpack: "UNPACK",
	OpUnpackRest: "UNPACK_REST",

	OpClosure: "CLOSURE", OpClass: "CLASS", OpMethod: "METHOD", OpInherit: "INHERIT",

	OpGetIter: "GET_ITER", OpForIter: "FOR_ITER",

	OpImportName: "IMPORT_NAME", OpImportString: "IMPORT_STRING", OpImportFmt: "IMPORT_FMT",
	OpImportVariable: "IMPORT_VARIABLE", OpImportAlias: "IMPORT_ALIAS", OpImportEnd: "IMPORT_END",

	OpDefineOptional: "DEFINE_OPTIONAL", OpMultiCase: "MULTI_CASE", OpCompareJump: "COMPARE_JUMP",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "UNKNOWN"
}

// OperandBytes exposes operandBytes for tooling that steps over
// instructions without decoding operands semantically. The compiler and
// bcdump do not call it.
func OperandBytes(op Op) int {
	if int(op) < len(operandBytes) {
		return operandBytes[op]
	}
	return 0
}

// OpCount is the number of defined opcodes, for bytecode validation on load.
const OpCount = int(opCount)

// Limits enforced by the compiler, matching the reference's XLIMM/XLIMF/
// XARGS/XMAXARGS/XKCONST diagnostics (spec.md §4.6).
const (
	maxConstants  = 256
	maxLocals     = 256
	maxUpvalues   = 256
	maxBCIns      = 1 << 24
	maxCallFrames = 200
	maxParams     = 255
)
