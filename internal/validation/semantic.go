package validation

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/internal/driver"
	"github.com/rendis/deskbot/internal/expressions"
	"github.com/rendis/deskbot/pkg/schema"
)

// cronParser accepts the five-field form used by `deskbot schedule`.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// validateSemantic checks what the schema cannot: required values being
// non-empty, action kinds, coordinates, key specs, the filter and the schedule.
// Problems that only fail individual records at run time are warnings.
func validateSemantic(def *schema.JobDefinition, lookup ActionLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if strings.TrimSpace(def.Excel.FilePath) == "" {
		result.AddError("excel.file_path", schema.ErrCodeConfiguration, "data file path is empty")
	}
	if strings.TrimSpace(def.Excel.CodeColumn) == "" {
		result.AddError("excel.code_column", schema.ErrCodeConfiguration, "code column is empty")
	}
	if strings.TrimSpace(def.Excel.QuantityColumn) == "" {
		result.AddError("excel.quantity_column", schema.ErrCodeConfiguration, "quantity column is empty")
	}
	if len(def.Steps) == 0 {
		result.AddError("steps", schema.ErrCodeConfiguration, "no steps configured")
	}

	for i := range def.Steps {
		validateStep(&def.Steps[i], fmt.Sprintf("steps[%d]", i), lookup, result)
	}

	validateSettings(def.Settings, result)
	return result
}

func validateStep(step *schema.StepDefinition, path string, lookup ActionLookup, result *schema.ValidationResult) {
	kind := actions.Kind(strings.TrimSpace(step.Action))
	if lookup != nil && !lookup.Has(kind) {
		result.AddWarning(path+".action", schema.ErrCodeUnknownAction,
			fmt.Sprintf("action %q is not supported (use one of %s); every record will fail at this step",
				step.Action, knownKinds(lookup)))
		return
	}

	if strings.TrimSpace(step.Target) != "" {
		result.AddWarning(path+".target", schema.ErrCodeValidation,
			fmt.Sprintf("image target %q is ignored; click steps use x and y", step.Target))
	}

	switch kind {
	case actions.KindClick, actions.KindDoubleClick:
		if step.X == nil || step.Y == nil {
			result.AddWarning(path, schema.ErrCodeMissingCoordinates,
				"click has no coordinates; every record will fail at this step")
		}
	case actions.KindTypeText:
		if step.Text == "" {
			result.AddWarning(path+".text", schema.ErrCodeValidation, "text is empty")
		}
	case actions.KindPressKey:
		if len(driver.SplitChord(step.Key)) == 0 {
			result.AddWarning(path+".key", schema.ErrCodeValidation,
				"key is empty; every record will fail at this step")
		}
	case actions.KindWait:
		if step.Seconds.Valid && step.Seconds.Value < 0 {
			result.AddWarning(path+".seconds", schema.ErrCodeValidation, "negative wait is treated as zero")
		}
	}
}

func knownKinds(lookup ActionLookup) string {
	infos := lookup.List()
	kinds := make([]string, len(infos))
	for i, info := range infos {
		kinds[i] = string(info.Kind)
	}
	return strings.Join(kinds, ", ")
}

func validateSettings(s schema.Settings, result *schema.ValidationResult) {
	if s.Countdown != nil && *s.Countdown < 0 {
		result.AddWarning("settings.countdown", schema.ErrCodeValidation,
			fmt.Sprintf("negative countdown, using the default of %d", schema.DefaultCountdown))
	}
	if s.Pause.Valid && s.Pause.Value < 0 {
		result.AddError("settings.pause", schema.ErrCodeConfiguration, "pause must not be negative")
	}
	if strings.TrimSpace(s.Filter) != "" {
		if _, err := expressions.NewFilter(s.FilterEngine, s.Filter); err != nil {
			result.AddError("settings.filter", schema.ErrCodeConfiguration, err.Error())
		}
	} else if s.FilterEngine != "" {
		result.AddWarning("settings.filter_engine", schema.ErrCodeValidation, "filter_engine is set without a filter")
	}
	if s.Schedule != "" {
		if _, err := cronParser.Parse(s.Schedule); err != nil {
			result.AddError("settings.schedule", schema.ErrCodeConfiguration,
				fmt.Sprintf("invalid cron expression %q: %v", s.Schedule, err))
		}
	}
}
