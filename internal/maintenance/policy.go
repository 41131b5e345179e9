package maintenance

// decideAction maps a fragmentation reading to a remediation. The
// effective rebuild cutoff is never below the reorganize cutoff, so a
// misconfigured (lower) rebuild threshold never disables rebuild.
func decideAction(fragmentationPercent, reorganizeThreshold, rebuildThreshold float64) MaintenanceAction {
	effectiveRebuild := rebuildThreshold
	if reorganizeThreshold > effectiveRebuild {
		effectiveRebuild = reorganizeThreshold
	}
	switch {
	case fragmentationPercent >= effectiveRebuild:
		return ActionRebuild
	case fragmentationPercent >= reorganizeThreshold:
		return ActionReorganize
	default:
		return ActionSkip
	}
}
