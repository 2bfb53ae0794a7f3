package handler

import (
	"bytes"
	_ "embed"
	"html/template"
)

//go:embed templates/help.html
var helpSource string

var helpTemplate = template.Must(template.New("help").Parse(helpSource))

var helpExamples = []string{
	"https://api.github.com/repos/AsmSafone/SafoneAPI",
	"https://api.github.com/repos/AsmSafone/SafoneAPI/releases",
}

// renderHelp renders the usage page for a relay reachable at scheme://host.
func renderHelp(scheme, host string) ([]byte, error) {
	var buf bytes.Buffer
	err := helpTemplate.Execute(&buf, struct {
		Base     string
		Examples []string
	}{
		Base:     scheme + "://" + host,
		Examples: helpExamples,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
