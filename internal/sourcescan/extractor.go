package sourcescan

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/temirov/dockwise/internal/buildstage"
)

const (
	cgoImportPathConstant          = "C"
	formattingImportPathConstant   = "fmt"
	formattingFunctionConstant     = "Sprintf"
	formatVerbMarkerConstant       = "%"
	shellScriptFlagConstant        = "-c"
	commentMarkerConstant          = "#"
	testFileSuffixConstant         = "_test.go"
	blankImportNameConstant        = "_"
	dotImportNameConstant          = "."
	developmentEnvironmentConstant = "development"
	testEnvironmentConstant        = "test"
	productionEnvironmentConstant  = "production"
)

var (
	commandShapePattern          = regexp.MustCompile(`^[a-z][a-z0-9\-_]*$`)
	environmentAnnotationPattern = regexp.MustCompile(`@environment\s+([^#\n]+)`)
	environmentSeparatorPattern  = regexp.MustCompile(`[,\s]+`)
)

// SpawnPrimitive identifies a function that starts a process and which argument names the program.
type SpawnPrimitive struct {
	ImportPath    string `mapstructure:"import_path"`
	Function      string `mapstructure:"function"`
	ArgumentIndex int    `mapstructure:"argument_index"`
}

// DefaultSpawnPrimitives lists the standard ways a Go program starts another process.
var DefaultSpawnPrimitives = []SpawnPrimitive{
	{ImportPath: "os/exec", Function: "Command", ArgumentIndex: 0},
	{ImportPath: "os/exec", Function: "CommandContext", ArgumentIndex: 1},
	{ImportPath: "os", Function: "StartProcess", ArgumentIndex: 0},
	{ImportPath: "syscall", Function: "Exec", ArgumentIndex: 0},
	{ImportPath: "syscall", Function: "ForkExec", ArgumentIndex: 0},
	{ImportPath: "golang.org/x/sys/unix", Function: "Exec", ArgumentIndex: 0},
}

// DefaultShells lists interpreters whose -c argument is itself a command line.
var DefaultShells = []string{"sh", "bash", "dash", "zsh"}

// ExtractorConfiguration selects the primitives and shells the extractor recognizes.
type ExtractorConfiguration struct {
	SpawnPrimitives []SpawnPrimitive
	Shells          []string
}

// Extractor finds literal command names passed to process-spawning calls in Go source.
type Extractor struct {
	primitives map[string]map[string]int
	shells     map[string]struct{}
}

// NewExtractor constructs an Extractor. Empty configuration lists fall back to the defaults.
func NewExtractor(configuration ExtractorConfiguration) *Extractor {
	spawnPrimitives := configuration.SpawnPrimitives
	if len(spawnPrimitives) == 0 {
		spawnPrimitives = DefaultSpawnPrimitives
	}
	shells := configuration.Shells
	if len(shells) == 0 {
		shells = DefaultShells
	}

	extractor := &Extractor{
		primitives: make(map[string]map[string]int),
		shells:     make(map[string]struct{}, len(shells)),
	}
	for _, primitive := range spawnPrimitives {
		if _, known := extractor.primitives[primitive.ImportPath]; !known {
			extractor.primitives[primitive.ImportPath] = make(map[string]int)
		}
		extractor.primitives[primitive.ImportPath][primitive.Function] = primitive.ArgumentIndex
	}
	for _, shell := range shells {
		extractor.shells[shell] = struct{}{}
	}
	return extractor
}

// ExtractFile parses one Go source file and returns its command invocations in source order, one per command.
func (extractor *Extractor) ExtractFile(filePath string, content []byte, defaultStage buildstage.Stage) (FileExtraction, error) {
	fileSet := token.NewFileSet()
	parsedFile, parseError := parser.ParseFile(fileSet, filePath, content, parser.SkipObjectResolution|parser.ParseComments)
	if parseError != nil {
		return FileExtraction{}, ParseError{Path: filePath, Cause: parseError}
	}

	stage := ClassifyStage(filePath, commentText(parsedFile), defaultStage)
	visitor := newFileVisitor(extractor, parsedFile)

	extraction := FileExtraction{UsesCgo: visitor.usesCgo}
	seen := make(map[string]struct{})
	record := func(candidate string, position token.Pos) {
		command, valid := commandToken(candidate)
		if !valid {
			return
		}
		if _, duplicate := seen[command]; duplicate {
			return
		}
		seen[command] = struct{}{}
		extraction.Invocations = append(extraction.Invocations, CommandInvocation{
			Command: command,
			File:    filePath,
			Line:    fileSet.Position(position).Line,
			Stage:   stage,
		})
	}

	fileInspector := inspector.New([]*ast.File{parsedFile})
	fileInspector.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(node ast.Node) {
		callExpression := node.(*ast.CallExpr)
		argumentIndex, spawns := visitor.spawnArgumentIndex(callExpression)
		if !spawns || argumentIndex >= len(callExpression.Args) {
			return
		}

		programText, _ := visitor.literalPrefix(callExpression.Args[argumentIndex])
		record(programText, callExpression.Pos())

		if script, found := visitor.shellScript(programText, callExpression.Args[argumentIndex+1:]); found {
			record(script, callExpression.Pos())
		}
	})

	return extraction, nil
}

// ClassifyStage applies the _test.go convention and any @environment annotation found in comments to the directory default.
func ClassifyStage(filePath string, comments string, defaultStage buildstage.Stage) buildstage.Stage {
	if strings.HasSuffix(filePath, testFileSuffixConstant) {
		return buildstage.Development
	}
	matches := environmentAnnotationPattern.FindStringSubmatch(comments)
	if matches == nil {
		return defaultStage
	}

	declaresDevelopment := false
	for _, environment := range environmentSeparatorPattern.Split(strings.ToLower(matches[1]), -1) {
		switch environment {
		case productionEnvironmentConstant:
			return defaultStage
		case developmentEnvironmentConstant, testEnvironmentConstant:
			declaresDevelopment = true
		}
	}
	if declaresDevelopment {
		return buildstage.Development
	}
	return defaultStage
}

func commentText(parsedFile *ast.File) string {
	var builder strings.Builder
	for _, commentGroup := range parsedFile.Comments {
		for _, comment := range commentGroup.List {
			builder.WriteString(comment.Text)
			builder.WriteByte('\n')
		}
	}
	return builder.String()
}

func commandToken(candidate string) (string, bool) {
	trimmedCandidate := strings.TrimSpace(candidate)
	if len(trimmedCandidate) == 0 || strings.HasPrefix(trimmedCandidate, commentMarkerConstant) {
		return "", false
	}
	command := strings.Fields(trimmedCandidate)[0]
	if !commandShapePattern.MatchString(command) {
		return "", false
	}
	return command, true
}

// fileVisitor carries per-file knowledge: import aliases and string constants.
type fileVisitor struct {
	extractor       *Extractor
	importPaths     map[string]string
	stringConstants map[string]string
	usesCgo         bool
}

func newFileVisitor(extractor *Extractor, parsedFile *ast.File) *fileVisitor {
	visitor := &fileVisitor{
		extractor:       extractor,
		importPaths:     make(map[string]string),
		stringConstants: make(map[string]string),
	}

	for _, importSpec := range parsedFile.Imports {
		importPath, unquoteError := strconv.Unquote(importSpec.Path.Value)
		if unquoteError != nil {
			continue
		}
		if importPath == cgoImportPathConstant {
			visitor.usesCgo = true
			continue
		}
		localName := path.Base(importPath)
		if importSpec.Name != nil {
			localName = importSpec.Name.Name
		}
		if localName == blankImportNameConstant || localName == dotImportNameConstant {
			continue
		}
		visitor.importPaths[localName] = importPath
	}

	ast.Inspect(parsedFile, func(node ast.Node) bool {
		valueSpec, isValueSpec := node.(*ast.ValueSpec)
		if !isValueSpec {
			return true
		}
		for nameIndex, name := range valueSpec.Names {
			if nameIndex >= len(valueSpec.Values) {
				break
			}
			if _, known := visitor.stringConstants[name.Name]; known {
				continue
			}
			if value, complete := visitor.literalPrefix(valueSpec.Values[nameIndex]); complete {
				visitor.stringConstants[name.Name] = value
			}
		}
		return true
	})

	return visitor
}

func (visitor *fileVisitor) spawnArgumentIndex(callExpression *ast.CallExpr) (int, bool) {
	importPath, function, qualified := visitor.qualifiedCallee(callExpression)
	if !qualified {
		return 0, false
	}
	functions, knownPackage := visitor.extractor.primitives[importPath]
	if !knownPackage {
		return 0, false
	}
	argumentIndex, known := functions[function]
	return argumentIndex, known
}

func (visitor *fileVisitor) qualifiedCallee(callExpression *ast.CallExpr) (string, string, bool) {
	selector, isSelector := callExpression.Fun.(*ast.SelectorExpr)
	if !isSelector {
		return "", "", false
	}
	packageIdentifier, isIdentifier := selector.X.(*ast.Ident)
	if !isIdentifier {
		return "", "", false
	}
	importPath, imported := visitor.importPaths[packageIdentifier.Name]
	if !imported {
		return "", "", false
	}
	return importPath, selector.Sel.Name, true
}

// literalPrefix returns the statically known leading text of a string expression and whether that text is the whole value.
func (visitor *fileVisitor) literalPrefix(expression ast.Expr) (string, bool) {
	switch typedExpression := expression.(type) {
	case *ast.BasicLit:
		if typedExpression.Kind != token.STRING {
			return "", false
		}
		value, unquoteError := strconv.Unquote(typedExpression.Value)
		if unquoteError != nil {
			return "", false
		}
		return value, true
	case *ast.Ident:
		value, known := visitor.stringConstants[typedExpression.Name]
		return value, known
	case *ast.ParenExpr:
		return visitor.literalPrefix(typedExpression.X)
	case *ast.BinaryExpr:
		if typedExpression.Op != token.ADD {
			return "", false
		}
		leftValue, leftComplete := visitor.literalPrefix(typedExpression.X)
		if !leftComplete {
			return leftValue, false
		}
		rightValue, rightComplete := visitor.literalPrefix(typedExpression.Y)
		return leftValue + rightValue, rightComplete
	case *ast.CallExpr:
		importPath, function, qualified := visitor.qualifiedCallee(typedExpression)
		if !qualified || importPath != formattingImportPathConstant || function != formattingFunctionConstant || len(typedExpression.Args) == 0 {
			return "", false
		}
		format, formatComplete := visitor.literalPrefix(typedExpression.Args[0])
		if verbIndex := strings.Index(format, formatVerbMarkerConstant); verbIndex >= 0 {
			return format[:verbIndex], false
		}
		return format, formatComplete && len(typedExpression.Args) == 1
	default:
		return "", false
	}
}

// shellScript returns the script passed to a shell through -c, looking through []string literals.
func (visitor *fileVisitor) shellScript(programText string, remainingArguments []ast.Expr) (string, bool) {
	program, valid := commandToken(programText)
	if !valid {
		return "", false
	}
	if _, isShell := visitor.extractor.shells[program]; !isShell {
		return "", false
	}

	flattenedArguments := make([]ast.Expr, 0, len(remainingArguments))
	for _, argument := range remainingArguments {
		if compositeLiteral, isComposite := argument.(*ast.CompositeLit); isComposite {
			flattenedArguments = append(flattenedArguments, compositeLiteral.Elts...)
			continue
		}
		flattenedArguments = append(flattenedArguments, argument)
	}

	for argumentIndex := 0; argumentIndex+1 < len(flattenedArguments); argumentIndex++ {
		flag, complete := visitor.literalPrefix(flattenedArguments[argumentIndex])
		if complete && flag == shellScriptFlagConstant {
			script, _ := visitor.literalPrefix(flattenedArguments[argumentIndex+1])
			return script, len(script) > 0
		}
	}
	return "", false
}
