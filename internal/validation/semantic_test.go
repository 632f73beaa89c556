package validation

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/pkg/schema"
)

// mockActionLookup implements ActionLookup for tests.
type mockActionLookup struct {
	registered map[actions.Kind]bool
}

func (m *mockActionLookup) Has(kind actions.Kind) bool {
	return m.registered[kind]
}

func (m *mockActionLookup) List() []actions.Info {
	infos := make([]actions.Info, 0, len(m.registered))
	for k := range m.registered {
		infos = append(infos, actions.Info{Kind: k})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Kind < infos[j].Kind })
	return infos
}

func newMockLookup(kinds ...actions.Kind) *mockActionLookup {
	m := &mockActionLookup{registered: make(map[actions.Kind]bool)}
	for _, k := range kinds {
		m.registered[k] = true
	}
	return m
}

func TestSemantic_RequiredValues(t *testing.T) {
	def := &schema.JobDefinition{}
	result := validateSemantic(def, nil)

	paths := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		assert.Equal(t, schema.ErrCodeConfiguration, e.Code)
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"excel.file_path", "excel.code_column", "excel.quantity_column", "steps"}, paths)
}

func TestSemantic_BlankColumnsAreEmpty(t *testing.T) {
	def := validJob()
	def.Excel.CodeColumn = "   "
	result := validateSemantic(def, nil)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "excel.code_column", result.Errors[0].Path)
}

func TestSemantic_UnknownActionIsWarning(t *testing.T) {
	def := validJob()
	def.Steps = append(def.Steps, schema.StepDefinition{Action: "find_image"})

	result := validateSemantic(def, actions.DefaultRegistry())
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "steps[4].action", result.Warnings[0].Path)
	assert.Equal(t, schema.ErrCodeUnknownAction, result.Warnings[0].Code)
	assert.Contains(t, result.Warnings[0].Message, "find_image")
	assert.Contains(t, result.Warnings[0].Message, "click, double_click")
}

func TestSemantic_UnknownActionListsRegisteredKinds(t *testing.T) {
	def := validJob()
	def.Steps = []schema.StepDefinition{{Action: "scroll"}}

	result := validateSemantic(def, newMockLookup(actions.KindWait, actions.KindClick))
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, `action "scroll" is not supported (use one of click, wait); every record will fail at this step`,
		result.Warnings[0].Message)
}

func TestSemantic_TargetIsIgnoredWithWarning(t *testing.T) {
	def := validJob()
	def.Steps[0].Target = "search.png"

	result := validateSemantic(def, actions.DefaultRegistry())
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "steps[0].target", result.Warnings[0].Path)
	assert.Contains(t, result.Warnings[0].Message, "search.png")
}

func TestSemantic_LookupIsConsulted(t *testing.T) {
	result := validateSemantic(validJob(), newMockLookup(actions.KindClick))
	assert.Len(t, result.Warnings, 3)
}

func TestSemantic_StepWarnings(t *testing.T) {
	tests := []struct {
		name string
		step schema.StepDefinition
		path string
		code string
	}{
		{"click without y", schema.StepDefinition{Action: "click", X: intp(1)}, "steps[0]", schema.ErrCodeMissingCoordinates},
		{"double click without x", schema.StepDefinition{Action: "double_click", Y: intp(1)}, "steps[0]", schema.ErrCodeMissingCoordinates},
		{"empty text", schema.StepDefinition{Action: "type_text"}, "steps[0].text", schema.ErrCodeValidation},
		{"empty key", schema.StepDefinition{Action: "press_key", Key: "  "}, "steps[0].key", schema.ErrCodeValidation},
		{"negative wait", schema.StepDefinition{Action: "wait", Seconds: schema.SecondsOf(-2)}, "steps[0].seconds", schema.ErrCodeValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := validJob()
			def.Steps = []schema.StepDefinition{tc.step}
			result := validateSemantic(def, actions.DefaultRegistry())
			assert.True(t, result.Valid())
			require.Len(t, result.Warnings, 1)
			assert.Equal(t, tc.path, result.Warnings[0].Path)
			assert.Equal(t, tc.code, result.Warnings[0].Code)
		})
	}
}

func TestSemantic_PlusKeyIsValid(t *testing.T) {
	def := validJob()
	def.Steps = []schema.StepDefinition{{Action: "press_key", Key: "+"}}
	result := validateSemantic(def, actions.DefaultRegistry())
	assert.Empty(t, result.Warnings)
}

func TestSemantic_Filter(t *testing.T) {
	def := validJob()
	def.Settings.Filter = "quantity > 0 && code != ''"
	assert.True(t, validateSemantic(def, nil).Valid())

	def.Settings.FilterEngine = "cel"
	def.Settings.Filter = "quantity > 0"
	assert.True(t, validateSemantic(def, nil).Valid())

	def.Settings.Filter = "quantity >"
	result := validateSemantic(def, nil)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "settings.filter", result.Errors[0].Path)
}

func TestSemantic_FilterEngineWithoutFilter(t *testing.T) {
	def := validJob()
	def.Settings.FilterEngine = "cel"
	result := validateSemantic(def, nil)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "settings.filter_engine", result.Warnings[0].Path)
}

func TestSemantic_Schedule(t *testing.T) {
	def := validJob()
	for _, expr := range []string{"0 9 * * 1-5", "*/15 * * * *", "@hourly"} {
		def.Settings.Schedule = expr
		assert.True(t, validateSemantic(def, nil).Valid(), expr)
	}

	def.Settings.Schedule = "every morning"
	result := validateSemantic(def, nil)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "settings.schedule", result.Errors[0].Path)
}

func TestSemantic_Settings(t *testing.T) {
	def := validJob()
	neg := -1
	def.Settings.Countdown = &neg
	def.Settings.Pause = schema.SecondsOf(-0.5)

	result := validateSemantic(def, nil)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "settings.pause", result.Errors[0].Path)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "settings.countdown", result.Warnings[0].Path)
}
