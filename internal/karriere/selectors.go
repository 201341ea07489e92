package karriere

import "karriere-harvester/internal/browser"

// Class names of the listing markup.
const (
	ClassResultsContainer = "m-jobsSearchList__activeJobs"
	ClassJobItem          = "m-jobsListItem--active"
	ClassJobTitle         = "m-jobsListItem__title"
	ClassJobCompany       = "m-jobsListItem__company"
	ClassListHeader       = "m-jobsListHeader__title"
	ClassOverlay          = "m-alarmDisruptorPill__pill"
	ClassLoadMore         = "m-loadMoreJobsButton__button"
	ClassDetailPanel      = "m-jobContent__iFrame"
	ClassLocation         = "m-keyfactBox__jobLocations"
	ClassEmploymentType   = "m-keyfactBox__jobEmploymentTypes"
	ClassSalary           = "m-keyfactBox__jobSalaryRange"
	ClassExperience       = "m-keyfactBox__jobLevel"
)

// Element ids of the search page.
const (
	IDSearchInput   = "keywords"
	IDConsentReject = "onetrust-reject-all-handler"
)

// Selectors are the locators a crawl resolves on the rendered listing.
type Selectors struct {
	SearchInput      browser.Locator
	ConsentReject    browser.Locator
	ResultsContainer browser.Locator
	JobItem          browser.Locator
	JobTitle         browser.Locator
	JobCompany       browser.Locator
	ListHeader       browser.Locator
	Overlay          browser.Locator
	LoadMore         browser.Locator
	DetailPanel      browser.Locator
	Location         browser.Locator
	EmploymentType   browser.Locator
	Salary           browser.Locator
	Experience       browser.Locator
}

// DefaultSelectors returns the selectors of the live site.
func DefaultSelectors() Selectors {
	return Selectors{
		SearchInput:      browser.ID(IDSearchInput),
		ConsentReject:    browser.ID(IDConsentReject),
		ResultsContainer: browser.XPath("//*[@class='" + ClassResultsContainer + "']"),
		JobItem:          browser.ClassName(ClassJobItem),
		JobTitle:         browser.ClassName(ClassJobTitle),
		JobCompany:       browser.ClassName(ClassJobCompany),
		ListHeader:       browser.ClassName(ClassListHeader),
		Overlay:          browser.ClassName(ClassOverlay),
		LoadMore:         browser.ClassName(ClassLoadMore),
		DetailPanel:      browser.CSS("." + ClassDetailPanel),
		Location:         browser.CSS("." + ClassLocation),
		EmploymentType:   browser.CSS("." + ClassEmploymentType),
		Salary:           browser.CSS("." + ClassSalary),
		Experience:       browser.CSS("." + ClassExperience),
	}
}

// Validate reports the first unusable locator.
func (s Selectors) Validate() error {
	for name, loc := range map[string]browser.Locator{
		"search_input":      s.SearchInput,
		"consent_reject":    s.ConsentReject,
		"results_container": s.ResultsContainer,
		"job_item":          s.JobItem,
		"job_title":         s.JobTitle,
		"job_company":       s.JobCompany,
		"list_header":       s.ListHeader,
		"overlay":           s.Overlay,
		"load_more":         s.LoadMore,
		"detail_panel":      s.DetailPanel,
		"location":          s.Location,
		"employment_type":   s.EmploymentType,
		"salary":            s.Salary,
		"experience":        s.Experience,
	} {
		if !loc.Valid() {
			return &InvalidSelectorError{Name: name, Locator: loc}
		}
	}
	return nil
}

// InvalidSelectorError names a selector that has no strategy or value.
type InvalidSelectorError struct {
	Name    string
	Locator browser.Locator
}

func (e *InvalidSelectorError) Error() string {
	return "karriere: invalid selector " + e.Name + " (" + e.Locator.String() + ")"
}
