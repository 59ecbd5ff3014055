package graph

import (
	"encoding/json"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Helper Functions
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// getOptionalFloat64FromRecord distinguishes a missing property from zero
func getOptionalFloat64FromRecord(record *neo4j.Record, key string) (float64, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

func getIntSliceFromRecord(record *neo4j.Record, key string) []int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []int{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]int, 0, len(slice))
		for _, v := range slice {
			switch i := v.(type) {
			case int64:
				result = append(result, int(i))
			case int:
				result = append(result, i)
			}
		}
		return result
	}
	return []int{}
}

func getGeocodingFromRecord(record *neo4j.Record, key string) ([]PlaceResult, error) {
	raw := getStringFromRecord(record, key)
	if raw == "" {
		return nil, nil
	}
	var results []PlaceResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, err
	}
	return results, nil
}

func toInt64s(rows []int) []int64 {
	result := make([]int64, len(rows))
	for i, r := range rows {
		result[i] = int64(r)
	}
	return result
}
