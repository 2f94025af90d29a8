package parse

import (
	"errors"
	"strings"
	"testing"

	"github.com/openlex/lexuk/engine/domain"
)

const ukFixture = `<?xml version="1.0" encoding="UTF-8"?>
<Legislation xmlns="http://www.legislation.gov.uk/namespaces/legislation"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  xmlns:ukm="http://www.legislation.gov.uk/namespaces/metadata"
  RestrictExtent="E+W+S+N.I.">
  <ukm:Metadata>
    <dc:identifier>http://www.legislation.gov.uk/id/ukpga/2006/46</dc:identifier>
    <dc:title>Companies Act 2006</dc:title>
    <dc:description>An Act to reform company law.</dc:description>
    <dc:modified>2024-03-01</dc:modified>
    <ukm:PrimaryMetadata>
      <ukm:DocumentClassification>
        <ukm:DocumentCategory Value="primary"/>
        <ukm:DocumentMainType Value="UnitedKingdomPublicGeneralAct"/>
        <ukm:DocumentStatus Value="revised"/>
      </ukm:DocumentClassification>
      <ukm:Year Value="2006"/>
      <ukm:Number Value="46"/>
      <ukm:EnactmentDate Date="2006-11-08"/>
      <ukm:NumberOfProvisions Value="1300"/>
    </ukm:PrimaryMetadata>
  </ukm:Metadata>
  <Primary>
    <Body>
      <P1group RestrictExtent="E+W">
        <Title>Companies and Companies Acts</Title>
        <P1 id="section-1" IdURI="http://www.legislation.gov.uk/id/ukpga/2006/46/section/1"
            DocumentURI="http://www.legislation.gov.uk/ukpga/2006/46/section/1">
          <Pnumber>1</Pnumber>
          <P1para>
            <Text>In the Companies Acts <Emphasis>company</Emphasis> means a company formed and registered under this Act.</Text>
            <P2 id="section-1-2">
              <Pnumber>2</Pnumber>
              <P2para>
                <Text>Certain provisions <CommentaryRef Ref="c100"/> also apply.</Text>
                <UnorderedList>
                  <ListItem><Text>companies registered under former Acts</Text></ListItem>
                  <ListItem><Text>overseas companies</Text></ListItem>
                </UnorderedList>
              </P2para>
            </P2>
          </P1para>
        </P1>
        <P1 id="section-2">
          <Pnumber>2</Pnumber>
          <P1para><Text>This one is not citable.</Text></P1para>
        </P1>
      </P1group>
    </Body>
  </Primary>
  <Schedules>
    <Schedule id="schedule-1" IdURI="http://www.legislation.gov.uk/id/ukpga/2006/46/schedule/1">
      <Number>Schedule 1</Number>
      <TitleBlock><Title>Connected persons</Title></TitleBlock>
      <P1 id="schedule-1-1"><P1para><Text>References to connected persons.</Text></P1para></P1>
    </Schedule>
  </Schedules>
  <Commentaries>
    <Commentary id="c100" Type="F">
      <Para><Text>S. 1 amended by S.I. 2009/1941.</Text></Para>
    </Commentary>
  </Commentaries>
</Legislation>`

func TestParseUKDocument(t *testing.T) {
	p, err := Parse([]byte(ukFixture), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d := p.Document
	if d.ID != "http://www.legislation.gov.uk/id/ukpga/2006/46" {
		t.Fatalf("id = %q", d.ID)
	}
	if d.Title != "Companies Act 2006" || d.Type != domain.TypeUKPGA {
		t.Fatalf("title/type = %q/%q", d.Title, d.Type)
	}
	if d.Year != 2006 || d.Number != "46" {
		t.Fatalf("year/number = %d/%q", d.Year, d.Number)
	}
	if d.Category != domain.CategoryPrimary || d.Status != "revised" {
		t.Fatalf("category/status = %q/%q", d.Category, d.Status)
	}
	if d.EnactmentDate != "2006-11-08" || d.NumberOfProvisions != 1300 {
		t.Fatalf("enactment/provisions = %q/%d", d.EnactmentDate, d.NumberOfProvisions)
	}
	if len(d.Extent) != 1 || d.Extent[0] != domain.ExtentUnitedKingdom {
		t.Fatalf("extent = %v", d.Extent)
	}
}

func TestParseUKSections(t *testing.T) {
	p, err := Parse([]byte(ukFixture), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Only the citable P1 (with IdURI) becomes a Section.
	if len(p.Sections) != 1 {
		t.Fatalf("sections = %d", len(p.Sections))
	}
	s := p.Sections[0]
	if s.ID != "http://www.legislation.gov.uk/id/ukpga/2006/46/section/1" {
		t.Fatalf("section id = %q", s.ID)
	}
	if s.Number != "1" || s.ProvisionType != domain.ProvisionSection {
		t.Fatalf("number/type = %q/%q", s.Number, s.ProvisionType)
	}
	if s.Title != "Companies and Companies Acts" {
		t.Fatalf("title = %q", s.Title)
	}
	if len(s.Extent) != 2 {
		t.Fatalf("group extent should win: %v", s.Extent)
	}
	if len(s.CommentaryIDs) != 1 || s.CommentaryIDs[0] != "c100" {
		t.Fatalf("commentary refs = %v", s.CommentaryIDs)
	}
	// Emphasis wrapper stripped, text collapsed, bullets rendered.
	if !strings.Contains(s.Text, "company means a company") {
		t.Fatalf("emphasis not unwrapped: %q", s.Text)
	}
	if !strings.Contains(s.Text, "- companies registered under former Acts") {
		t.Fatalf("list bullets missing: %q", s.Text)
	}
	if !strings.Contains(s.Text, "1.") {
		t.Fatalf("paragraph numbering missing: %q", s.Text)
	}
}

func TestParseUKSchedules(t *testing.T) {
	p, _ := Parse([]byte(ukFixture), nil)
	if len(p.Schedules) != 1 {
		t.Fatalf("schedules = %d", len(p.Schedules))
	}
	sch := p.Schedules[0]
	if sch.ProvisionType != domain.ProvisionSchedule || sch.Number != "1" {
		t.Fatalf("schedule = %+v", sch)
	}
	if sch.Title != "Connected persons" {
		t.Fatalf("schedule title = %q", sch.Title)
	}
}

func TestParseCommentaries(t *testing.T) {
	p, _ := Parse([]byte(ukFixture), nil)
	c, ok := p.Commentaries["c100"]
	if !ok {
		t.Fatal("commentary c100 missing")
	}
	if c.Type != "F" || !strings.Contains(c.Text, "S.I. 2009/1941") {
		t.Fatalf("commentary = %+v", c)
	}
}

func TestParseNoBody(t *testing.T) {
	xml := `<Legislation><ukm:Metadata xmlns:ukm="x">
	  <dc:identifier xmlns:dc="y">http://www.legislation.gov.uk/id/ukla/1851/51</dc:identifier>
	</ukm:Metadata></Legislation>`
	_, err := Parse([]byte(xml), nil)
	if !errors.Is(err, domain.ErrNoBody) {
		t.Fatalf("want ErrNoBody, got %v", err)
	}
}

const euFixture = `<Legislation xmlns:ukm="x">
  <ukm:Metadata>
    <dc:identifier xmlns:dc="y">http://www.legislation.gov.uk/id/eur/2016/679</dc:identifier>
    <dc:title xmlns:dc="y">General Data Protection Regulation</dc:title>
    <ukm:EURetained CurrentVersion="true"/>
    <ukm:DocumentClassification>
      <ukm:DocumentCategory Value="euretained"/>
    </ukm:DocumentClassification>
  </ukm:Metadata>
  <EUBody>
    <Division id="division-1" IdURI="http://www.legislation.gov.uk/id/eur/2016/679/article/1">
      <Number>Article 1</Number>
      <Title>Subject-matter and objectives</Title>
      <Text>This Regulation lays down rules relating to the protection of natural persons.</Text>
    </Division>
    <Division id="annex-1" IdURI="http://www.legislation.gov.uk/id/eur/2016/679/annex/1">
      <Number>ANNEX I</Number>
      <Text>Annex content.</Text>
    </Division>
  </EUBody>
</Legislation>`

func TestParseEURetained(t *testing.T) {
	p, err := Parse([]byte(euFixture), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Document.Category != domain.CategoryEuropean {
		t.Fatalf("category = %q", p.Document.Category)
	}
	if len(p.Sections) != 1 || len(p.Schedules) != 1 {
		t.Fatalf("sections/schedules = %d/%d", len(p.Sections), len(p.Schedules))
	}
	if p.Sections[0].Title != "Article 1 Subject-matter and objectives" {
		t.Fatalf("title = %q", p.Sections[0].Title)
	}
	if p.Schedules[0].ProvisionType != domain.ProvisionSchedule {
		t.Fatal("annex should be stored as schedule")
	}
}

func TestParseAmendments(t *testing.T) {
	xml := `<Changes xmlns:ukm="x">
	  <ukm:Effect EffectId="key-1"
	    AffectedURI="http://www.legislation.gov.uk/id/ukpga/2020/1"
	    AffectedProvisionsURI="http://www.legislation.gov.uk/id/ukpga/2020/1/section/3"
	    AffectingURI="http://www.legislation.gov.uk/id/ukpga/2024/9"
	    Type="words substituted" AffectingYear="2024"/>
	  <ukm:Effect Type="repealed" AffectingYear="2024"/>
	</Changes>`
	amendments, err := ParseAmendments([]byte(xml))
	if err != nil {
		t.Fatalf("ParseAmendments: %v", err)
	}
	if len(amendments) != 1 {
		t.Fatalf("amendments = %d", len(amendments))
	}
	a := amendments[0]
	if a.ChangedDocumentID != "http://www.legislation.gov.uk/id/ukpga/2020/1" {
		t.Fatalf("changed = %q", a.ChangedDocumentID)
	}
	if a.AffectingYear != 2024 || a.TypeOfEffect != "words substituted" {
		t.Fatalf("amendment = %+v", a)
	}
}

func TestParseNotes(t *testing.T) {
	xml := `<ExplanatoryNotes>
	  <Division><Title>Overview of the Act</Title>
	    <Para><Text>These notes relate to the Act.</Text></Para>
	  </Division>
	  <Division><Title>Commentary on Sections</Title>
	    <Division><Title>Section 3: Meaning of subsidiary</Title>
	      <Para><Text>Section 3 defines subsidiary.</Text></Para>
	    </Division>
	  </Division>
	</ExplanatoryNotes>`
	notes, err := ParseNotes([]byte(xml), "ukpga/2006/46")
	if err != nil {
		t.Fatalf("ParseNotes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("notes = %d", len(notes))
	}
	if notes[0].NoteType != "overview" || notes[0].Order != 1 {
		t.Fatalf("first note = %+v", notes[0])
	}
	second := notes[1]
	if second.SectionType != "section" || second.SectionNumber != "3" {
		t.Fatalf("section ref = %q %q", second.SectionType, second.SectionNumber)
	}
	if len(second.Route) != 2 || second.Route[0] != "Commentary on Sections" {
		t.Fatalf("route = %v", second.Route)
	}
	if second.LegislationID != "http://www.legislation.gov.uk/id/ukpga/2006/46" {
		t.Fatalf("legislation id = %q", second.LegislationID)
	}
}
