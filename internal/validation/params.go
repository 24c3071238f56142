package validation

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/models"
)

// Entity selects the sort allow-list and defaults for a list endpoint.
type Entity struct {
	SortFields  []string
	DefaultSort string
	DefaultDir  models.SortOrder
}

var (
	Transactions = Entity{
		SortFields:  []string{"date", "amount", "beneficiary"},
		DefaultSort: "date",
		DefaultDir:  models.Descending,
	}
	Accounts = Entity{
		SortFields:  []string{"account_number", "account_name", "created_at"},
		DefaultSort: "account_number",
		DefaultDir:  models.Ascending,
	}
)

// ParseListParams normalizes limit, offset, sort_by, sort_order and search. Limits above
// the maximum are clamped; non-positive limits and negative offsets are rejected.
func ParseListParams(values url.Values, entity Entity) (models.ListParams, error) {
	params := models.ListParams{
		SortBy:    entity.DefaultSort,
		SortOrder: entity.DefaultDir,
	}
	details := map[string][]string{}

	limit, offset, pageErrs := parsePage(values)
	for k, v := range pageErrs {
		details[k] = v
	}
	params.Limit, params.Offset = limit, offset

	if s := strings.TrimSpace(values.Get("sort_by")); s != "" {
		if !contains(entity.SortFields, s) {
			details["sort_by"] = append(details["sort_by"], "Sort field must be one of: "+strings.Join(entity.SortFields, ", "))
		} else {
			params.SortBy = s
		}
	}

	if s := strings.TrimSpace(values.Get("sort_order")); s != "" {
		switch models.SortOrder(strings.ToLower(s)) {
		case models.Ascending:
			params.SortOrder = models.Ascending
		case models.Descending:
			params.SortOrder = models.Descending
		default:
			details["sort_order"] = append(details["sort_order"], "Sort order must be one of: asc, desc")
		}
	}

	params.Search = strings.TrimSpace(values.Get("search"))
	if len(params.Search) > models.MaxSearchLength {
		details["search"] = append(details["search"], "Length must be at most "+strconv.Itoa(models.MaxSearchLength))
	}

	if len(details) > 0 {
		return models.ListParams{}, apperrors.Validation(MsgRequestInvalid, details)
	}
	return params, nil
}

// ParsePage parses only limit and offset, with the same rules as ParseListParams.
func ParsePage(values url.Values) (limit, offset int, err error) {
	limit, offset, details := parsePage(values)
	if len(details) > 0 {
		return 0, 0, apperrors.Validation(MsgRequestInvalid, details)
	}
	return limit, offset, nil
}

func parsePage(values url.Values) (int, int, map[string][]string) {
	details := map[string][]string{}
	limit, offset := models.DefaultPageSize, 0

	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			details["limit"] = []string{"Not a valid integer"}
		case n <= 0:
			details["limit"] = []string{"Limit must be greater than zero"}
		case n > models.MaxPageSize:
			limit = models.MaxPageSize
		default:
			limit = n
		}
	}

	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			details["offset"] = []string{"Not a valid integer"}
		case n < 0:
			details["offset"] = []string{"Offset must be zero or greater"}
		default:
			offset = n
		}
	}

	return limit, offset, details
}

// ParseID parses a path identifier. Non-numeric or non-positive ids are a ValidationError.
func ParseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("Invalid "+name+" ID", map[string][]string{
			"id": {"Must be a positive integer"},
		})
	}
	return id, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
