package statustree

// mergeFields copies the tracked scalar fields of src onto dst and reports
// whether any of them changed.
//
// String-like fields and TimeStarted are replace-if-non-empty: an empty
// value from the server never clears a known one. Progress and Undone are
// always taken from src because 0 and false are meaningful values.
func mergeFields(dst, src *Node) bool {
	changed := false
	changed = replaceString(&dst.ID, src.ID) || changed
	changed = replaceString(&dst.Name, src.Name) || changed
	changed = replaceString(&dst.User, src.User) || changed
	changed = replaceString(&dst.URL, src.URL) || changed

	if src.Status != "" && dst.Status != src.Status {
		dst.Status = src.Status
		changed = true
	}
	if src.Kind != "" && dst.Kind != src.Kind {
		dst.Kind = src.Kind
		changed = true
	}
	if src.TimeStarted != nil && (dst.TimeStarted == nil || !dst.TimeStarted.Equal(*src.TimeStarted)) {
		t := *src.TimeStarted
		dst.TimeStarted = &t
		changed = true
	}
	if dst.Progress != src.Progress {
		dst.Progress = src.Progress
		changed = true
	}
	if dst.Undone != src.Undone {
		dst.Undone = src.Undone
		changed = true
	}

	// A node that turned into a step with unfetched children gets the sentinel
	// so it can be expanded.
	if dst.ChildState == ChildrenNone && src.ChildState == ChildrenPending {
		dst.ChildState = ChildrenPending
	}
	return changed
}

func replaceString(dst *string, src string) bool {
	if src == "" || *dst == src {
		return false
	}
	*dst = src
	return true
}

// adoptPage copies the child pagination cursors from src.
func adoptPage(dst, src *Node) {
	dst.ChildState = ChildrenLoaded
	dst.PageNumber = src.PageNumber
	dst.NextPage = src.NextPage
	dst.PrevPage = src.PrevPage
}
