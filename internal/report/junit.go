package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/a11yscan/internal/model"
)

// junitTestSuites is the root element of a JUnit XML document.
type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Body    string `xml:",chardata"`
}

// JUnitWriter outputs reports as JUnit XML for CI systems.
// Each route group becomes a test suite and each check a test case.
type JUnitWriter struct {
	baseWriter
}

// NewJUnitWriter creates a JUnitWriter that outputs to the given writer.
func NewJUnitWriter(output io.Writer) *JUnitWriter {
	return &JUnitWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in JUnit XML format.
func (w *JUnitWriter) Write(report *model.RunReport) (int, error) {
	doc := newJUnitDocument(report)

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, err
	}

	out := make([]byte, 0, len(xml.Header)+len(data)+1)
	out = append(out, xml.Header...)
	out = append(out, data...)
	out = append(out, '\n')
	return w.output.Write(out)
}

// newJUnitDocument groups results into suites in first-seen order.
func newJUnitDocument(report *model.RunReport) junitTestSuites {
	doc := junitTestSuites{
		Name: "a11yscan " + report.Target,
		Time: seconds(report.Duration().Seconds()),
	}

	index := make(map[string]int)
	for _, res := range report.ResultsSnapshot() {
		suiteName := suiteNameFor(res)
		i, ok := index[suiteName]
		if !ok {
			i = len(doc.Suites)
			index[suiteName] = i
			doc.Suites = append(doc.Suites, junitTestSuite{
				Name:      suiteName,
				Timestamp: report.StartedAt.UTC().Format("2006-01-02T15:04:05"),
			})
		}
		suite := &doc.Suites[i]

		tc := junitTestCase{
			Name:      res.Name,
			ClassName: strings.ReplaceAll(suiteName, " ", "-"),
			Time:      seconds(res.Duration.Seconds()),
		}
		switch res.Status {
		case model.StatusFailed:
			tc.Failure = &junitMessage{Message: res.Message, Type: string(res.Kind), Body: failureBody(res)}
			suite.Failures++
		case model.StatusError:
			tc.Error = &junitMessage{Message: res.Message, Type: "error"}
			suite.Errors++
		case model.StatusSkipped:
			tc.Skipped = &junitMessage{Message: res.Message}
			suite.Skipped++
		case model.StatusPassed:
		}
		suite.Tests++
		suite.Cases = append(suite.Cases, tc)
	}

	for _, s := range doc.Suites {
		doc.Tests += s.Tests
		doc.Failures += s.Failures
		doc.Errors += s.Errors
		doc.Skipped += s.Skipped
	}

	if report.Error != "" {
		doc.Errors++
		doc.Tests++
		doc.Suites = append(doc.Suites, junitTestSuite{
			Name:   "run",
			Tests:  1,
			Errors: 1,
			Cases: []junitTestCase{{
				Name:      "run completed",
				ClassName: "run",
				Time:      seconds(0),
				Error:     &junitMessage{Message: report.Error, Type: "error"},
			}},
		})
	}

	return doc
}

func suiteNameFor(res model.CheckResult) string {
	if res.Group != "" {
		return res.Group
	}
	return string(res.Kind)
}

// failureBody lists every violation and its nodes.
func failureBody(res model.CheckResult) string {
	if len(res.Violations) == 0 {
		return res.Message
	}
	var sb strings.Builder
	for _, v := range res.Violations {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", v.Impact, v.ID, v.Help)
		for _, n := range v.Nodes {
			fmt.Fprintf(&sb, "  %s\n", n.Selector())
		}
	}
	return sb.String()
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
