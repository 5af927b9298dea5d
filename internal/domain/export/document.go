package export

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"time"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
	"github.com/ayurclinic/clinic/internal/domain/patient"
)

const chartDateLayout = "January 2, 2006"

// Document is a printable diet chart, ready to hand to a Renderer.
type Document struct {
	Title string
	// BaseName is the download name without extension.
	BaseName string
	HTML     string
}

type section struct {
	Heading string
	Class   string
	Items   []string
}

type documentData struct {
	Title       string
	Name        string
	Age         string
	Gender      string
	Prakriti    string
	Agni        string
	Number      int
	GeneratedOn string
	Meals       []section
	Guidance    []section
	Notes       string
	LoginID     string
	PrintedAt   string
}

var whitespace = regexp.MustCompile(`\s+`)

// BuildDocument lays out chart index of p. now stamps the footer.
func BuildDocument(p *patient.Patient, index int, c dietplan.Chart, now time.Time) (Document, error) {
	age := "N/A"
	if p.Age != nil && *p.Age > 0 {
		age = strconv.Itoa(*p.Age)
	}
	diet := c.Diet.Normalize()
	data := documentData{
		Title:       "Diet Chart - " + p.Name,
		Name:        p.Name,
		Age:         age,
		Gender:      string(p.Gender),
		Prakriti:    string(p.DominantPrakriti),
		Agni:        string(p.Agni),
		Number:      index + 1,
		GeneratedOn: c.Date.Format(chartDateLayout),
		Meals: []section{
			{Heading: "Breakfast", Class: "meal-section", Items: diet.Breakfast},
			{Heading: "Lunch", Class: "meal-section", Items: diet.Lunch},
			{Heading: "Dinner", Class: "meal-section", Items: diet.Dinner},
			{Heading: "Snacks", Class: "meal-section", Items: diet.Snacks},
		},
		Guidance: []section{
			{Heading: "Food Restrictions", Class: "meal-section restrictions", Items: diet.Restrictions},
			{Heading: "Recommendations", Class: "meal-section recommendations", Items: diet.Recommendations},
		},
		Notes:     c.Notes,
		LoginID:   p.LoginID,
		PrintedAt: now.Format("January 2, 2006 15:04 MST"),
	}

	var buf bytes.Buffer
	if err := chartTemplate.Execute(&buf, data); err != nil {
		return Document{}, fmt.Errorf("render chart template: %w", err)
	}
	return Document{
		Title:    data.Title,
		BaseName: BaseName(p.Name, index),
		HTML:     buf.String(),
	}, nil
}

// BaseName is the download name of chart index for a patient called name,
// with runs of whitespace collapsed to dashes.
func BaseName(name string, index int) string {
	return fmt.Sprintf("diet-chart-%s-%d", whitespace.ReplaceAllString(name, "-"), index+1)
}

var chartTemplate = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f8f9fa; color: #333; }
.container { max-width: 800px; margin: 0 auto; background: white; padding: 30px; border-radius: 10px; }
.header { text-align: center; border-bottom: 3px solid #10b981; padding-bottom: 20px; margin-bottom: 30px; }
.header h1 { color: #10b981; margin: 0 0 10px 0; font-size: 2.5em; }
.header h2 { color: #666; margin: 0; font-weight: normal; font-size: 1.2em; }
.patient-info { background: #f8f9fa; padding: 20px; border-radius: 8px; margin-bottom: 30px; border-left: 4px solid #10b981; }
.ayurveda-info { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 15px; }
.info-card { background: #e8f5e8; padding: 12px; border-radius: 6px; text-align: center; border: 1px solid #c3e6c3; }
.info-card strong { color: #155724; display: block; margin-bottom: 5px; }
.date-info { background: #e3f2fd; padding: 10px 15px; border-radius: 6px; margin-bottom: 20px; border-left: 4px solid #2196f3; }
.diet-section { margin-bottom: 25px; padding: 20px; border: 1px solid #e9ecef; border-radius: 8px; }
.meal-section { background: #f8f9fa; padding: 15px; margin: 15px 0; border-radius: 6px; border-left: 4px solid #17a2b8; }
.meal-section h4 { color: #17a2b8; margin: 0 0 10px 0; }
.restrictions { border-left-color: #dc3545; }
.restrictions h4 { color: #dc3545; }
.recommendations { border-left-color: #28a745; }
.recommendations h4 { color: #28a745; }
.notes { background: #fff3cd; padding: 15px; border-radius: 6px; border-left: 4px solid #ffc107; margin-top: 20px; }
.footer { text-align: center; margin-top: 40px; padding-top: 20px; border-top: 1px solid #e9ecef; color: #6c757d; font-size: 0.9em; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>Ayurvedic Diet Chart</h1>
<h2>Personalized Nutrition Plan</h2>
</div>
<div class="patient-info">
<h3>Patient Information</h3>
<div class="ayurveda-info">
<div class="info-card"><strong>Name</strong>{{.Name}}</div>
<div class="info-card"><strong>Age</strong>{{.Age}}</div>
<div class="info-card"><strong>Gender</strong>{{.Gender}}</div>
<div class="info-card"><strong>Dominant Prakriti</strong>{{.Prakriti}}</div>
<div class="info-card"><strong>Agni Type</strong>{{.Agni}}</div>
</div>
</div>
<div class="date-info"><strong>Diet Chart #{{.Number}}</strong> - Generated on {{.GeneratedOn}}</div>
<div class="diet-section">
<h3>Daily Meal Plan</h3>
{{range .Meals}}<div class="{{.Class}}">
<h4>{{.Heading}}</h4>
<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>
</div>
{{end}}</div>
<div class="diet-section">
{{range .Guidance}}<div class="{{.Class}}">
<h4>{{.Heading}}</h4>
<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>
</div>
{{end}}</div>
{{if .Notes}}<div class="notes">
<h4>Additional Notes</h4>
<p>{{.Notes}}</p>
</div>
{{end}}<div class="footer">
<p>This diet chart is based on Ayurvedic principles and your individual constitution (Prakriti).</p>
<p>Please consult with your healthcare provider for any specific dietary concerns.</p>
<p><strong>Patient ID:</strong> {{.LoginID}} | <strong>Generated:</strong> {{.PrintedAt}}</p>
</div>
</div>
</body>
</html>
`))
