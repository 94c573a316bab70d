package od

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/ini.v1"
)

var (
	matchIndex    = regexp.MustCompile(`^[0-9A-Fa-f]{4}$`)
	matchSubIndex = regexp.MustCompile(`^([0-9A-Fa-f]{4})sub([0-9A-Fa-f]+)$`)
)

// ParseEDS loads an EDS/DCF (.ini format) object dictionary description
// from source, which may be a file path, []byte, or io.Reader, anything
// accepted by [ini.Load]. Only the entries the RPDO core cares about are
// interpreted richly (VAR/ARRAY/RECORD, access type, PDO mapping, data
// type, default value); unsupported section shapes are skipped rather
// than rejected.
func ParseEDS(source any) (*ObjectDictionary, error) {
	file, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("od: load EDS: %w", err)
	}

	dict := NewObjectDictionary()

	for _, section := range file.Sections() {
		name := section.Name()

		switch {
		case matchIndex.MatchString(name):
			idx, err := strconv.ParseUint(name, 16, 16)
			if err != nil {
				return nil, err
			}
			index := uint16(idx)
			objectType := uint8(ObjectTypeVAR)
			if ot, err := strconv.ParseUint(section.Key("ObjectType").Value(), 0, 8); err == nil {
				objectType = uint8(ot)
			}
			paramName := section.Key("ParameterName").String()

			switch objectType {
			case ObjectTypeVAR, ObjectTypeDOMAIN:
				variable, err := variableFromSection(section, paramName, 0)
				if err != nil {
					return nil, fmt.Errorf("od: entry x%x: %w", index, err)
				}
				dict.Add(NewEntry(index, paramName, variable, ObjectTypeVAR))
			case ObjectTypeARRAY, ObjectTypeRECORD:
				dict.Add(NewEntry(index, paramName, &VariableList{ObjectType: objectType}, objectType))
			default:
				return nil, fmt.Errorf("od: entry x%x: unknown ObjectType %d", index, objectType)
			}

		case matchSubIndex.MatchString(name):
			idx, err := strconv.ParseUint(name[0:4], 16, 16)
			if err != nil {
				return nil, err
			}
			sidx, err := strconv.ParseUint(name[7:], 16, 8)
			if err != nil {
				return nil, err
			}
			index, subIndex := uint16(idx), uint8(sidx)

			entry, ok := dict.Find(index)
			if !ok {
				return nil, fmt.Errorf("od: sub-entry x%xsub%x: parent index not found", index, subIndex)
			}
			list, ok := entry.object.(*VariableList)
			if !ok {
				return nil, fmt.Errorf("od: sub-entry x%xsub%x: parent is not an array/record", index, subIndex)
			}
			paramName := section.Key("ParameterName").String()
			variable, err := variableFromSection(section, paramName, subIndex)
			if err != nil {
				return nil, fmt.Errorf("od: sub-entry x%xsub%x: %w", index, subIndex, err)
			}
			list.Variables = append(list.Variables, variable)
		}
	}

	return dict, nil
}

func variableFromSection(section *ini.Section, name string, subIndex uint8) (*Variable, error) {
	accessType := section.Key("AccessType").String()

	pdoMapping := true
	if key, err := section.GetKey("PDOMapping"); err == nil {
		pdoMapping, _ = key.Bool()
	}

	dataType := uint8(UNSIGNED32)
	if dt, err := strconv.ParseUint(section.Key("DataType").Value(), 0, 8); err == nil {
		dataType = uint8(dt)
	}

	attribute := EncodeAttribute(accessType, pdoMapping, dataType)

	value := ""
	if key, err := section.GetKey("DefaultValue"); err == nil {
		value = key.Value()
	}

	return NewVariable(subIndex, name, dataType, attribute, value)
}
