package engine

import (
	"sort"
	"time"
)

// StateDescriptor summarises a task's resource against its last applied state.
type StateDescriptor struct {
	Label     string
	IsCreated bool
	CreatedAt *time.Time

	// SpecDrifted and ResourceDrifted are nil when nothing was applied yet.
	SpecDrifted     *bool
	ResourceDrifted *bool

	AppliedSpecChecksum         string
	CurrentResolvedSpecChecksum string
	AppliedResourcesChecksum    string
	CurrentResourceChecksum     string
	AppliedSpec                 map[string]any
}

// DescribeOptions controls how a StateDescriptor is rendered.
type DescribeOptions struct {
	HumanReadable      bool
	WithChecksums      bool
	IncludeAppliedSpec bool
}

// Describe compares the task's prior state with its current spec and the
// checksum of the resource as it exists now.
func Describe(t *Task, currentResourceChecksum string) StateDescriptor {
	d := StateDescriptor{
		Label:                       t.Label(),
		CurrentResolvedSpecChecksum: t.SpecChecksum(),
		CurrentResourceChecksum:     currentResourceChecksum,
		AppliedSpec:                 map[string]any{},
	}
	if t.State == nil {
		return d
	}

	created := t.State.CreatedAt
	specDrifted := t.State.AppliedSpecChecksum != d.CurrentResolvedSpecChecksum
	resourceDrifted := t.State.AppliedResourceChecksum != currentResourceChecksum

	d.IsCreated = true
	d.CreatedAt = &created
	d.SpecDrifted = &specDrifted
	d.ResourceDrifted = &resourceDrifted
	d.AppliedSpecChecksum = t.State.AppliedSpecChecksum
	d.AppliedResourcesChecksum = t.State.AppliedResourceChecksum
	d.AppliedSpec = CopyMap(t.State.AppliedSpec)
	return d
}

// Map renders the descriptor. The raw form uses booleans, unix seconds and
// nil for unknowns; the human readable form uses Yes/No/Unknown and "-".
func (d StateDescriptor) Map(opts DescribeOptions) map[string]any {
	out := map[string]any{
		"Label":           d.Label,
		"IsCreated":       d.IsCreated,
		"SpecDrifted":     boolPtrValue(d.SpecDrifted),
		"ResourceDrifted": boolPtrValue(d.ResourceDrifted),
	}
	if d.CreatedAt != nil {
		out["CreatedTimestamp"] = d.CreatedAt.Unix()
	} else {
		out["CreatedTimestamp"] = nil
	}

	if opts.HumanReadable {
		out["IsCreated"] = yesNo(d.IsCreated)
		out["SpecDrifted"] = yesNoUnknown(d.SpecDrifted)
		out["ResourceDrifted"] = yesNoUnknown(d.ResourceDrifted)
		out["CreatedTimestamp"] = "-"
		if d.CreatedAt != nil {
			out["CreatedTimestamp"] = d.CreatedAt.UTC().Format(time.RFC3339)
		}
	}

	if opts.WithChecksums {
		out["AppliedSpecChecksum"] = optionalString(d.AppliedSpecChecksum, opts.HumanReadable)
		out["CurrentResolvedSpecChecksum"] = d.CurrentResolvedSpecChecksum
		out["AppliedResourcesChecksum"] = optionalString(d.AppliedResourcesChecksum, opts.HumanReadable)
		out["CurrentResourceChecksum"] = d.CurrentResourceChecksum
	}

	if opts.IncludeAppliedSpec {
		out["AppliedSpec"] = CopyMap(d.AppliedSpec)
	}
	return out
}

func boolPtrValue(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func yesNoUnknown(b *bool) string {
	if b == nil {
		return "Unknown"
	}
	return yesNo(*b)
}

func optionalString(s string, human bool) any {
	if s != "" {
		return s
	}
	if human {
		return "-"
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
