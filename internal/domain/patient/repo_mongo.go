package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
)

// CollectionName is the mongo collection holding patient documents, with the
// diet chart history embedded as an ordered array.
const CollectionName = "patients"

type patientRepoMongo struct {
	coll *mongo.Collection
}

func NewRepoMongo(database *mongo.Database) Repository {
	return &patientRepoMongo{coll: database.Collection(CollectionName)}
}

// EnsureIndexes creates the unique login id index and the owner listing index.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(CollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "loginId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "addedBy", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create patient indexes: %w", err)
	}
	return nil
}

// patientDoc stores the uuid as its canonical string so documents stay
// readable in the mongo shell.
type patientDoc struct {
	ID      string `bson:"_id"`
	Patient `bson:",inline"`
}

func toDoc(p *Patient) patientDoc {
	return patientDoc{ID: p.ID.String(), Patient: *p}
}

func (d patientDoc) patient() (*Patient, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode patient id %q: %w", d.ID, err)
	}
	p := d.Patient
	p.ID = id
	if p.DietCharts == nil {
		p.DietCharts = []dietplan.Chart{}
	}
	for i := range p.DietCharts {
		p.DietCharts[i].Diet = p.DietCharts[i].Diet.Normalize()
	}
	return &p, nil
}

func (r *patientRepoMongo) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.DietCharts == nil {
		p.DietCharts = []dietplan.Chart{}
	}
	_, err := r.coll.InsertOne(ctx, toDoc(p))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateLoginID
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoMongo) findOne(ctx context.Context, filter bson.M) (*Patient, error) {
	var doc patientDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return doc.patient()
}

func (r *patientRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *patientRepoMongo) GetByLoginID(ctx context.Context, loginID string) (*Patient, error) {
	return r.findOne(ctx, bson.M{"loginId": loginID})
}

func (r *patientRepoMongo) LoginIDExists(ctx context.Context, loginID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"loginId": loginID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check login id: %w", err)
	}
	return n > 0, nil
}

func (r *patientRepoMongo) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"name":             p.Name,
		"gender":           p.Gender,
		"dominantPrakriti": p.DominantPrakriti,
		"agni":             p.Agni,
		"updatedAt":        p.UpdatedAt,
	}
	unset := bson.M{}
	optional := map[string]interface{}{
		"age":             p.Age,
		"bp":              p.BP,
		"weight":          p.Weight,
		"dosha":           emptyToNil(p.Dosha),
		"lifestyle":       emptyToNil(p.Lifestyle),
		"existingDisease": emptyToNil(p.ExistingDisease),
	}
	for field, v := range optional {
		if isNil(v) {
			unset[field] = ""
		} else {
			set[field] = v
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return r.updateOne(ctx, p.ID, update)
}

func (r *patientRepoMongo) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"password": hash, "updatedAt": time.Now().UTC()}})
}

func (r *patientRepoMongo) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"lastLogin": at}})
}

func (r *patientRepoMongo) updateOne(ctx context.Context, id uuid.UUID, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete drops the document; the embedded history goes with it.
func (r *patientRepoMongo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoMongo) ListByOwner(ctx context.Context, addedBy string, limit, offset int) ([]*Patient, int, error) {
	filter := bson.M{}
	if addedBy != "" {
		filter["addedBy"] = addedBy
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer cur.Close(ctx)

	var docs []patientDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode patients: %w", err)
	}
	items := make([]*Patient, 0, len(docs))
	for _, d := range docs {
		p, err := d.patient()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, int(total), nil
}

func (r *patientRepoMongo) Charts(ctx context.Context, id uuid.UUID) ([]dietplan.Chart, int64, error) {
	var doc struct {
		DietCharts   []dietplan.Chart `bson:"dietCharts"`
		ChartVersion int64            `bson:"chartVersion"`
	}
	opts := options.FindOne().SetProjection(bson.M{"dietCharts": 1, "chartVersion": 1})
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read diet charts: %w", err)
	}
	charts := make([]dietplan.Chart, len(doc.DietCharts))
	for i, c := range doc.DietCharts {
		c.Diet = c.Diet.Normalize()
		charts[i] = c
	}
	return charts, doc.ChartVersion, nil
}

// SaveCharts replaces the embedded array only if chartVersion still equals
// expectedVersion. A document missing the field counts as version 0.
func (r *patientRepoMongo) SaveCharts(ctx context.Context, id uuid.UUID, charts []dietplan.Chart, expectedVersion int64) (int64, error) {
	filter := bson.M{"_id": id.String(), "chartVersion": expectedVersion}
	if expectedVersion == 0 {
		filter = bson.M{"_id": id.String(), "$or": bson.A{
			bson.M{"chartVersion": 0},
			bson.M{"chartVersion": bson.M{"$exists": false}},
		}}
	}
	normalized := make([]dietplan.Chart, len(charts))
	for i, c := range charts {
		c.Diet = c.Diet.Normalize()
		normalized[i] = c
	}
	next := expectedVersion + 1
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"dietCharts":   normalized,
		"chartVersion": next,
		"updatedAt":    time.Now().UTC(),
	}})
	if err != nil {
		return 0, fmt.Errorf("save diet charts: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id.String()}, options.Count().SetLimit(1))
		if err != nil {
			return 0, fmt.Errorf("check patient: %w", err)
		}
		if n == 0 {
			return 0, ErrNotFound
		}
		return 0, ErrConcurrentModification
	}
	return next, nil
}

func emptyToNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isNil(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *int:
		return t == nil
	case *string:
		return t == nil
	case *float64:
		return t == nil
	}
	return false
}
