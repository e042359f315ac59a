package analysis

// PageSize is how many files one results page shows.
const PageSize = 10

// Page is a window over the files of a Result.
type Page struct {
	Number     int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalFiles int          `json:"totalItems"`
	TotalPages int          `json:"totalPages"`
	HasPrev    bool         `json:"hasPrev"`
	HasNext    bool         `json:"hasNext"`
	Offset     int          `json:"offset"`
	Files      []FileResult `json:"files"`
}

// TotalPages is ceil(n / size), never below 1.
func TotalPages(n, size int) int {
	if size <= 0 {
		size = PageSize
	}
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Paginate returns page number (1-based) of files. Requests outside
// 1..TotalPages are clamped to the nearest boundary.
func Paginate(files []FileResult, number, size int) Page {
	if size <= 0 {
		size = PageSize
	}
	total := TotalPages(len(files), size)
	if number < 1 {
		number = 1
	}
	if number > total {
		number = total
	}

	start := (number - 1) * size
	end := start + size
	if end > len(files) {
		end = len(files)
	}
	var slice []FileResult
	if start < end {
		slice = files[start:end]
	}

	return Page{
		Number:     number,
		PageSize:   size,
		TotalFiles: len(files),
		TotalPages: total,
		HasPrev:    number > 1,
		HasNext:    number < total,
		Offset:     start,
		Files:      slice,
	}
}

// PaginatedRecords is a page of history records.
type PaginatedRecords struct {
	Data       []*Record `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}
