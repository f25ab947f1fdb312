package main

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"arked/internal/grid"
)

// fuzzyMatch performs fuzzy matching and returns match status and positions.
// It matches characters from search in order within text (case-insensitive).
// Returns true if all characters in search were found, and the positions of those characters.
func fuzzyMatch(search, text string) (bool, []int) {
	search = strings.ToLower(search)
	text = strings.ToLower(text)

	var positions []int
	searchIdx := 0

	for i, char := range text {
		if searchIdx < len(search) && char == rune(search[searchIdx]) {
			positions = append(positions, i)
			searchIdx++
		}
	}

	return searchIdx == len(search), positions
}

// RefOption is one pickable target record. Key is the natural key shown in
// parentheses after the label, and both take part in matching.
type RefOption struct {
	ID    string
	Label string
	Key   string
}

func (o RefOption) displayText() string {
	if o.Key == "" {
		return o.Label
	}
	return o.Label + " (" + o.Key + ")"
}

// formatOptionWithColor formats an option with tview color codes highlighting
// the matched positions in bold dark green.
func formatOptionWithColor(text string, positions []int) string {
	if len(positions) == 0 {
		return text
	}

	highlightMap := make(map[int]bool)
	for _, pos := range positions {
		highlightMap[pos] = true
	}

	var result strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		if highlightMap[i] {
			// Bold and dark green for matches
			result.WriteString("[darkgreen::b]")
			result.WriteRune(r)
			result.WriteString("[-::-]")
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// FuzzySelector is the reference picker shown when editing a reference cell.
// It displays a searchable dropdown over the loaded records; picking one
// resolves the cell to that record's identifier.
type FuzzySelector struct {
	*tview.Box
	items         []RefOption       // All pickable records
	searchText    string            // Current search text
	selectedIndex int               // Highlighted item in dropdown
	dropdownList  *tview.List       // Dropdown list for showing filtered records
	maxVisible    int               // Max items to show in dropdown (6)
	inputField    *tview.InputField // Reference to the currently created input field
	innerFlex     *tview.Flex       // Inner flex container
	dropdownFlex  *tview.Flex       // Flex container for dropdown (to allow resizing)

	// Callbacks
	onSelect func(ref grid.Ref) // Called when a record is picked
	onClose  func()             // Called when the selector should be closed
}

// NewFuzzySelector creates a new reference picker over the given records.
func NewFuzzySelector(items []RefOption, onSelect func(grid.Ref), onClose func()) *FuzzySelector {
	fs := &FuzzySelector{
		Box:           tview.NewBox(),
		items:         items,
		selectedIndex: 0,
		maxVisible:    6,
		onSelect:      onSelect,
		onClose:       onClose,
	}

	// Pre-initialize the layout so input field exists immediately
	filtered, matchPositions := fs.calculateFiltered("")
	fs.buildInnerLayout(filtered, matchPositions)

	return fs
}

// SetItems replaces the pickable records, keeping the current search.
func (fs *FuzzySelector) SetItems(items []RefOption) {
	fs.items = items
	fs.selectedIndex = 0
}

// calculateFiltered filters the records by search text and returns the
// filtered options with match positions into their display text.
func (fs *FuzzySelector) calculateFiltered(search string) ([]RefOption, map[int][]int) {
	filtered := []RefOption{}
	matchPositions := make(map[int][]int)

	if search == "" {
		// No search, show everything
		filtered = fs.items
		for i := range fs.items {
			matchPositions[i] = []int{}
		}
	} else {
		// Fuzzy search over the combined label and key text
		for _, opt := range fs.items {
			matches, positions := fuzzyMatch(search, opt.displayText())
			if matches {
				filtered = append(filtered, opt)
				matchPositions[len(filtered)-1] = positions
			}
		}
	}

	return filtered, matchPositions
}

// pick resolves one option into a reference and hands it to the callback.
func (fs *FuzzySelector) pick(opt RefOption) {
	if fs.onSelect != nil {
		fs.clearSearchText()
		fs.onSelect(grid.Ref{ID: opt.ID, Label: opt.Label})
	}
}

// Draw implements tview.Primitive and renders the fuzzy selector.
// It calculates filtered results and match positions on each frame.
func (fs *FuzzySelector) Draw(screen tcell.Screen) {
	fs.Box.DrawForSubclass(screen, fs)

	// Calculate filtered results and match positions on each draw
	filtered, matchPositions := fs.calculateFiltered(fs.searchText)

	// Build or rebuild the inner layout if needed
	if fs.innerFlex == nil {
		fs.buildInnerLayout(filtered, matchPositions)
	} else {
		// Just update the dropdown list without rebuilding the input field
		fs.updateDropdownList(filtered, matchPositions)
	}

	// Draw the inner layout
	if fs.innerFlex != nil {
		x, y, width, height := fs.GetInnerRect()

		// Set up the inner flex with proper sizing
		fs.innerFlex.SetRect(x, y, width, height)
		fs.innerFlex.Draw(screen)
	}
}

// InputHandler returns the handler for keyboard events.
// This forwards input to the input field so it can receive keystrokes.
func (fs *FuzzySelector) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return fs.WrapInputHandler(func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
		// Forward all input to the input field if it exists
		if fs.inputField != nil {
			if handler := fs.inputField.InputHandler(); handler != nil {
				handler(event, setFocus)
				return
			}
		}
	})
}

// MouseHandler returns the handler for mouse events.
// This enables hover highlighting and click selection in the dropdown list.
func (fs *FuzzySelector) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (bool, tview.Primitive) {
	return fs.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (bool, tview.Primitive) {
		// Get mouse position
		mouseX, mouseY := event.Position()

		// Check if mouse is over the dropdown list
		if fs.dropdownList != nil {
			listX, listY, listWidth, listHeight := fs.dropdownList.GetRect()

			// Check if mouse is within dropdown bounds
			if mouseX >= listX && mouseX < listX+listWidth &&
				mouseY >= listY && mouseY < listY+listHeight {

				filtered, _ := fs.calculateFiltered(fs.searchText)
				if len(filtered) == 0 {
					return false, nil
				}

				// Calculate which item the mouse is over
				itemIndex := mouseY - listY
				if itemIndex >= 0 && itemIndex < len(filtered) {
					switch action {
					case tview.MouseMove:
						// Hover: highlight the item
						fs.dropdownList.SetCurrentItem(itemIndex)
						fs.selectedIndex = itemIndex
						return true, nil

					case tview.MouseLeftClick:
						// Click: select the item
						fs.pick(filtered[itemIndex])
						return true, nil
					}
				}
			}
		}

		// Forward other mouse events to inner components
		if fs.innerFlex != nil {
			if handler := fs.innerFlex.MouseHandler(); handler != nil {
				consumed, primitive := handler(action, event, setFocus)
				if consumed {
					return true, primitive
				}
			}
		}

		return false, nil
	})
}

// Focus is called when this primitive receives focus.
func (fs *FuzzySelector) Focus(delegate func(p tview.Primitive)) {
	// Forward focus to the input field
	if fs.inputField != nil {
		delegate(fs.inputField)
	}
}

// HasFocus returns whether or not this primitive has focus.
func (fs *FuzzySelector) HasFocus() bool {
	// Check if the input field has focus
	if fs.inputField != nil {
		return fs.inputField.HasFocus()
	}
	return false
}

// buildInnerLayout builds the internal flex layout with input field and dropdown.
func (fs *FuzzySelector) buildInnerLayout(filtered []RefOption, matchPositions map[int][]int) {
	inputField := fs.createInputField()
	fs.createDropdownListWithData(filtered, matchPositions)

	// Calculate height for dropdown
	listHeight := len(filtered)
	if listHeight == 0 {
		listHeight = 1 // Show "No results"
	}
	if listHeight > fs.maxVisible {
		listHeight = fs.maxVisible
	}

	// Inner flex: input field + dropdown list
	fs.dropdownFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(inputField, 1, 0, true).
		AddItem(fs.dropdownList, listHeight, 0, false)

	// Outer flex: 1-character left padding + inner flex
	fs.innerFlex = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(tview.NewBox(), 1, 0, false). // 1-character left padding
		AddItem(fs.dropdownFlex, 0, 1, true)
}

// updateDropdownList updates just the dropdown list without rebuilding the input field.
func (fs *FuzzySelector) updateDropdownList(filtered []RefOption, matchPositions map[int][]int) {
	if fs.dropdownFlex == nil {
		return
	}

	// Remove old dropdown from flex
	fs.dropdownFlex.RemoveItem(fs.dropdownList)

	// Create new dropdown with updated data
	fs.createDropdownListWithData(filtered, matchPositions)

	// Calculate height for dropdown
	listHeight := len(filtered)
	if listHeight == 0 {
		listHeight = 1 // Show "No results"
	}
	if listHeight > fs.maxVisible {
		listHeight = fs.maxVisible
	}

	// Add new dropdown to flex
	fs.dropdownFlex.AddItem(fs.dropdownList, listHeight, 0, false)
}

// createInputField creates and returns a new input field for the picker.
func (fs *FuzzySelector) createInputField() *tview.InputField {
	inputField := tview.NewInputField().
		SetLabel("").
		SetText(fs.searchText).
		SetPlaceholder("Search records...").
		SetFieldWidth(0)

	// Store reference to the input field
	fs.inputField = inputField

	// Update search text (dropdown will be updated in Draw)
	inputField.SetChangedFunc(func(text string) {
		fs.searchText = text
	})

	// Handle keyboard navigation and selection
	inputField.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		filtered, _ := fs.calculateFiltered(fs.searchText)

		switch event.Key() {
		case tcell.KeyEscape:
			// Close the picker without changing the cell
			if fs.onClose != nil {
				fs.onClose()
			}
			return nil // Consume the event
		case tcell.KeyDown, tcell.KeyTab:
			// Move focus to dropdown list (select next item)
			if fs.dropdownList != nil && len(filtered) > 0 {
				fs.selectedIndex++
				fs.dropdownList.SetCurrentItem(fs.selectedIndex)
				return tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)
			}
			return nil
		case tcell.KeyUp, tcell.KeyBacktab:
			// Move focus to dropdown list (select previous item)
			if fs.dropdownList != nil && len(filtered) > 0 {
				fs.selectedIndex--
				fs.dropdownList.SetCurrentItem(fs.selectedIndex)
				return tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)
			}
			return nil
		case tcell.KeyEnter:
			// Select the currently highlighted item in dropdown
			if fs.dropdownList != nil && len(filtered) > 0 {
				if idx := fs.dropdownList.GetCurrentItem(); idx >= 0 && idx < len(filtered) {
					fs.pick(filtered[idx])
				}
				return nil // Consume the event
			}
		}
		return event
	})

	return inputField
}

// GetInputField returns the most recently created input field instance.
// This is used by the Editor to set focus when the picker is opened.
func (fs *FuzzySelector) GetInputField() *tview.InputField {
	return fs.inputField
}

// clearSearchText clears the search text and updates the input field.
func (fs *FuzzySelector) clearSearchText() {
	fs.searchText = ""
	if fs.inputField != nil {
		fs.inputField.SetText("")
	}
	fs.selectedIndex = 0
}

// createDropdownListWithData creates and populates the dropdown list with pre-calculated filtered results.
func (fs *FuzzySelector) createDropdownListWithData(filtered []RefOption, matchPositions map[int][]int) {
	fs.dropdownList = tview.NewList().
		SetWrapAround(true).
		ShowSecondaryText(false)

	// Populate with filtered results
	if len(filtered) == 0 {
		fs.dropdownList.AddItem("No results", "", rune(0), nil)
	} else {
		for i, opt := range filtered {
			// Get match positions and format with highlighting
			positions := matchPositions[i]
			displayText := formatOptionWithColor(opt.displayText(), positions)

			// Capture the option in closure for selection handler
			picked := opt
			fs.dropdownList.AddItem(displayText, "", rune(0), func() {
				fs.pick(picked)
			})
		}
	}

	// Set current item to match selectedIndex
	if fs.selectedIndex >= 0 && fs.selectedIndex < len(filtered) {
		fs.dropdownList.SetCurrentItem(fs.selectedIndex)
	}

	// Handle navigation in dropdown
	fs.dropdownList.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentItem := fs.dropdownList.GetCurrentItem()

		switch event.Key() {
		case tcell.KeyEscape:
			// Return focus to input field
			return tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone)
		case tcell.KeyUp:
			// If at first item, move focus back to input field
			if currentItem == 0 {
				return tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone)
			}
			// Otherwise, let the list handle up navigation
			return event
		case tcell.KeyBacktab:
			// Shift+Tab always returns to input field
			return event
		case tcell.KeyEnter:
			// Select the current item
			filtered, _ := fs.calculateFiltered(fs.searchText)
			if currentItem >= 0 && currentItem < len(filtered) {
				fs.pick(filtered[currentItem])
			}
			return nil // Consume the event
		}
		return event
	})
}
