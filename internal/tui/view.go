package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/clean-dependency-project/cdpanel/internal/engine"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

	badgeOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badgeBad  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	badgeDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	badgeWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	advisoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	focusedLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	plainLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimLabel     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(1, 2)
)

// View renders the whole panel.
func (a *App) View() string {
	vm := a.engine.Render()

	if a.confirming && a.confirm != nil {
		return a.renderConfirm()
	}
	if vm.Loading {
		msg := vm.LoadingMessage
		if msg == "" {
			msg = "Loading..."
		}
		return modalStyle.Render(msg)
	}

	header := a.renderHeader(vm)
	left := panelStyle.Render(a.catalogList.View())
	right := panelStyle.Render(a.renderForm(vm))
	table := panelStyle.Render(renderTable(vm))
	footer := renderFooter(vm)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, table, footer)
}

func (a *App) renderHeader(vm engine.ViewModel) string {
	parts := []string{titleStyle.Render("Release Panel")}

	switch {
	case !vm.BranchKnown:
		parts = append(parts, badgeDim.Render("branch: ..."))
	case vm.BranchProtected:
		parts = append(parts, badgeWarn.Render("branch: "+vm.BranchName+" (protected)"))
	default:
		parts = append(parts, badgeOK.Render("branch: "+vm.BranchName))
	}

	if vm.AuthKnown {
		parts = append(parts, authBadge("github", vm.GitHubAuthenticated))
		parts = append(parts, authBadge("catalog", vm.CatalogAuthenticated))
	} else {
		parts = append(parts, badgeDim.Render("auth: checking"))
	}

	if vm.CacheNote != "" {
		parts = append(parts, badgeDim.Render(vm.CacheNote))
	}
	if vm.UnpushedWarning {
		parts = append(parts, badgeWarn.Render("unpushed commits"))
	}

	return strings.Join(parts, "  ")
}

func authBadge(name string, ok bool) string {
	if ok {
		return badgeOK.Render(name + " ✓")
	}
	return badgeBad.Render(name + " ✗")
}

func (a *App) renderForm(vm engine.ViewModel) string {
	var b strings.Builder

	b.WriteString(a.label("Version", focusVersion, vm.VersionEnabled))
	b.WriteString("\n")
	b.WriteString(a.versionInput.View())
	b.WriteString("\n\n")

	b.WriteString(a.label("Postfix", focusPostfix, vm.PostfixEnabled))
	b.WriteString("\n")
	b.WriteString(a.postfixInput.View())
	b.WriteString("\n\n")

	b.WriteString(a.checkbox("Release on GitHub", focusGitHubCheck, a.releaseGitHub))
	b.WriteString("\n")
	b.WriteString(a.checkbox("Publish to catalog", focusCatalogCheck, a.publishCatalog))
	b.WriteString("\n\n")

	b.WriteString(a.button("Create Pre-Release", focusCreate, vm.CreateEnabled, vm.CreateBusy))
	b.WriteString("  ")
	b.WriteString(a.button("Refresh", focusRefresh, vm.RefreshEnabled, vm.RefreshBusy))

	return b.String()
}

func (a *App) label(text string, target focusTarget, enabled bool) string {
	switch {
	case !enabled:
		return dimLabel.Render(text)
	case a.focus == target:
		return focusedLabel.Render(text)
	default:
		return plainLabel.Render(text)
	}
}

func (a *App) checkbox(text string, target focusTarget, checked bool) string {
	box := "[ ] "
	if checked {
		box = "[x] "
	}
	return a.label(box+text, target, true)
}

func (a *App) button(text string, target focusTarget, enabled, busy bool) string {
	if busy {
		return dimLabel.Render("[ " + text + "... ]")
	}
	return a.label("[ "+text+" ]", target, enabled)
}

func renderTable(vm engine.ViewModel) string {
	if vm.TableStatus != "" {
		return dimLabel.Render(vm.TableStatus)
	}

	var b strings.Builder
	b.WriteString(focusedLabel.Render(fmt.Sprintf("%-24s %s", "GitHub Release", "Catalog Versions")))
	for _, row := range vm.Rows {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-24s %s", row.GitHubTag, strings.Join(row.CatalogCells, ", ")))
	}
	return b.String()
}

func renderFooter(vm engine.ViewModel) string {
	var lines []string
	if vm.FormError != "" {
		style := errorStyle
		if vm.FormError == engine.AdvisoryProtectedBranch {
			style = advisoryStyle
		}
		lines = append(lines, style.Render(vm.FormError))
	}
	if vm.SecondaryError != "" {
		lines = append(lines, errorStyle.Render(vm.SecondaryError))
	}
	if vm.ReleaseError != "" {
		lines = append(lines, errorStyle.Render("Release failed: "+vm.ReleaseError))
	}
	lines = append(lines, dimLabel.Render("tab: focus · enter: activate · space: toggle · ctrl+r: refresh · esc: clear error · ctrl+c: quit"))
	return strings.Join(lines, "\n")
}

func (a *App) renderConfirm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Confirm Release"))
	b.WriteString("\n\n")
	b.WriteString(a.confirm.Summary)
	b.WriteString("\n\n")
	b.WriteString(dimLabel.Render("y: create · n: cancel"))
	return modalStyle.Render(b.String())
}
