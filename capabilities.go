package conformsql

// Feature names a SQL capability that differs between dialects.
type Feature string

const (
	// FeatureDatabases means tables can be qualified by a database or schema.
	FeatureDatabases Feature = "databases"
	// FeatureNumberedPlaceholders means bind parameters are written $1, $2, ...
	FeatureNumberedPlaceholders Feature = "numbered_placeholders"
	// FeatureReturning means DML statements accept a RETURNING clause.
	FeatureReturning Feature = "returning"
)

// Capabilities defines which SQL features are supported by each dialect
var Capabilities = map[Dialect]map[Feature]bool{
	DialectPostgres: {
		FeatureDatabases:            true,
		FeatureNumberedPlaceholders: true,
		FeatureReturning:            true,
	},
	DialectMySQL: {
		FeatureDatabases:            true,
		FeatureNumberedPlaceholders: false,
		FeatureReturning:            false,
	},
	DialectMariaDB: {
		FeatureDatabases:            true,
		FeatureNumberedPlaceholders: false,
		FeatureReturning:            true,
	},
	DialectSQLite: {
		FeatureDatabases:            false,
		FeatureNumberedPlaceholders: false,
		FeatureReturning:            true,
	},
}

// Supports reports whether the dialect has the feature.
func (d Dialect) Supports(feature Feature) bool {
	return Capabilities[d][feature]
}
